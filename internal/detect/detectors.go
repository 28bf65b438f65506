package detect

import "prospector/internal/domain"

// detector is a single named predicate+tag rule. The table order is
// meaningful: platforms first, then frameworks, build tools and third-party
// services. A matched platform suppresses the frameworks it is known to use
// internally.
type detector struct {
	Name       string
	Category   domain.TechCategory
	Icon       string
	Suppresses []string
	Match      func(p *page) bool
}

// defaultDetectors is the production rule table.
var defaultDetectors = []detector{
	// Platforms / CMS. Page builders list their internal frameworks in
	// Suppresses.
	{
		Name: "WordPress", Category: domain.CategoryCMS, Icon: "wordpress",
		Match: func(p *page) bool {
			return p.generatorContains("wordpress") || p.contains("wp-content/", "wp-includes/")
		},
	},
	{
		Name: "Shopify", Category: domain.CategoryCMS, Icon: "shopify",
		Match: func(p *page) bool {
			return p.contains("cdn.shopify.com", "shopify.theme", "myshopify.com")
		},
	},
	{
		Name: "Wix", Category: domain.CategoryCMS, Icon: "wix",
		Suppresses: []string{"React", "Next.js"},
		Match: func(p *page) bool {
			return p.generatorContains("wix.com") || p.contains("static.parastorage.com", "wixstatic.com")
		},
	},
	{
		Name: "Squarespace", Category: domain.CategoryCMS, Icon: "squarespace",
		Suppresses: []string{"React"},
		Match: func(p *page) bool {
			return p.generatorContains("squarespace") || p.contains("static1.squarespace.com", "squarespace-cdn.com")
		},
	},
	{
		Name: "Webflow", Category: domain.CategoryCMS, Icon: "webflow",
		Suppresses: []string{"jQuery"},
		Match: func(p *page) bool {
			return p.generatorContains("webflow") || p.contains("website-files.com", "data-wf-site")
		},
	},
	{
		Name: "Weebly", Category: domain.CategoryCMS, Icon: "weebly",
		Suppresses: []string{"jQuery", "React"},
		Match: func(p *page) bool {
			return p.generatorContains("weebly") || p.contains("editmysite.com")
		},
	},
	{
		Name: "Duda", Category: domain.CategoryCMS, Icon: "duda",
		Suppresses: []string{"jQuery"},
		Match: func(p *page) bool {
			return p.contains("dudamobile.com", "cdn-cms.f-static.net", "window._currentdevice")
		},
	},
	{
		Name: "GoDaddy Website Builder", Category: domain.CategoryCMS, Icon: "godaddy",
		Suppresses: []string{"React", "Vue.js"},
		Match: func(p *page) bool {
			return p.contains("img1.wsimg.com", "websites.godaddy.com")
		},
	},
	{
		Name: "Joomla", Category: domain.CategoryCMS, Icon: "joomla",
		Match: func(p *page) bool {
			return p.generatorContains("joomla") || p.contains("/media/jui/")
		},
	},
	{
		Name: "Drupal", Category: domain.CategoryCMS, Icon: "drupal",
		Match: func(p *page) bool {
			return p.generatorContains("drupal") || p.contains("drupal-settings-json", "/sites/default/files/")
		},
	},

	// Storefront platforms beyond the hosted builders.
	{
		Name: "WooCommerce", Category: domain.CategoryEcommerce, Icon: "woocommerce",
		Match: func(p *page) bool { return p.contains("woocommerce") },
	},
	{
		Name: "BigCommerce", Category: domain.CategoryEcommerce, Icon: "bigcommerce",
		Match: func(p *page) bool { return p.contains("bigcommerce.com", "cdn11.bigcommerce.com") },
	},
	{
		Name: "Magento", Category: domain.CategoryEcommerce, Icon: "magento",
		Match: func(p *page) bool { return p.contains("mage/cookies", "magento_", "x-magento-init") },
	},
	{
		Name: "PrestaShop", Category: domain.CategoryEcommerce, Icon: "prestashop",
		Match: func(p *page) bool { return p.generatorContains("prestashop") || p.contains("prestashop") },
	},
	{
		Name: "Ecwid", Category: domain.CategoryEcommerce, Icon: "ecwid",
		Match: func(p *page) bool { return p.contains("ecwid.com", "app.ecwid") },
	},

	// Themes and plugins (WordPress ecosystem mostly).
	{
		Name: "Divi", Category: domain.CategoryTheme, Icon: "divi",
		Match: func(p *page) bool { return p.contains("/themes/divi", "et_pb_") },
	},
	{
		Name: "Astra", Category: domain.CategoryTheme, Icon: "astra",
		Match: func(p *page) bool { return p.contains("/themes/astra") },
	},
	{
		Name: "Elementor", Category: domain.CategoryPlugin, Icon: "elementor",
		Match: func(p *page) bool { return p.contains("elementor") },
	},
	{
		Name: "WPBakery", Category: domain.CategoryPlugin, Icon: "wpbakery",
		Match: func(p *page) bool { return p.contains("js_composer", "wpbakery") },
	},
	{
		Name: "Yoast SEO", Category: domain.CategoryPlugin, Icon: "yoast",
		Match: func(p *page) bool { return p.contains("yoast seo", "yoast-schema-graph") },
	},
	{
		Name: "Contact Form 7", Category: domain.CategoryPlugin, Icon: "cf7",
		Match: func(p *page) bool { return p.contains("wpcf7") },
	},
	{
		Name: "Slider Revolution", Category: domain.CategoryPlugin, Icon: "revslider",
		Match: func(p *page) bool { return p.contains("revslider", "rev_slider") },
	},

	// Frameworks and libraries.
	{
		Name: "Next.js", Category: domain.CategoryFramework, Icon: "nextjs",
		Match: func(p *page) bool { return p.contains("__next_data__", "/_next/static/") },
	},
	{
		Name: "Nuxt", Category: domain.CategoryFramework, Icon: "nuxt",
		Match: func(p *page) bool { return p.contains("__nuxt", "/_nuxt/") },
	},
	{
		Name: "React", Category: domain.CategoryFramework, Icon: "react",
		Match: func(p *page) bool {
			return p.contains("data-reactroot", "data-react-helmet") || p.scriptSrc("react.", "react-dom")
		},
	},
	{
		Name: "Vue.js", Category: domain.CategoryFramework, Icon: "vue",
		Match: func(p *page) bool {
			return p.contains("data-v-app", "__vue__") || p.scriptSrc("vue.js", "vue.min.js", "vue.runtime")
		},
	},
	{
		Name: "Angular", Category: domain.CategoryFramework, Icon: "angular",
		Match: func(p *page) bool { return p.contains("ng-version=") },
	},
	{
		Name: "Svelte", Category: domain.CategoryFramework, Icon: "svelte",
		Match: func(p *page) bool { return p.contains("svelte-") },
	},
	{
		Name: "jQuery", Category: domain.CategoryFramework, Icon: "jquery",
		Match: func(p *page) bool { return p.scriptSrc("jquery") },
	},
	{
		Name: "Bootstrap", Category: domain.CategoryFramework, Icon: "bootstrap",
		Match: func(p *page) bool { return p.contains("bootstrap.min.css", "bootstrap.bundle", "bootstrap.css") },
	},
	{
		Name: "Tailwind CSS", Category: domain.CategoryFramework, Icon: "tailwind",
		Match: func(p *page) bool { return p.contains("tailwindcss", "cdn.tailwindcss.com") },
	},

	// Build tools.
	{
		Name: "Vite", Category: domain.CategoryBuildTool, Icon: "vite",
		Match: func(p *page) bool { return p.contains("/@vite/client", "vite/modulepreload-polyfill") },
	},
	{
		Name: "webpack", Category: domain.CategoryBuildTool, Icon: "webpack",
		Match: func(p *page) bool { return p.contains("webpackjsonp", "__webpack_require__", "webpack_public_path") },
	},

	// Third-party services: analytics, marketing, chat, hosting, payments,
	// testing, forms, reviews, scheduling, accessibility, privacy, video,
	// maps, fonts.
	{
		Name: "Google Analytics", Category: domain.CategoryAnalytics, Icon: "ga",
		Match: func(p *page) bool {
			return p.contains("google-analytics.com", "googletagmanager.com/gtag/js", "gtag(")
		},
	},
	{
		Name: "Google Tag Manager", Category: domain.CategoryAnalytics, Icon: "gtm",
		Match: func(p *page) bool { return p.contains("googletagmanager.com/gtm.js", "gtm-") },
	},
	{
		Name: "Facebook Pixel", Category: domain.CategoryAnalytics, Icon: "fbpixel",
		Match: func(p *page) bool { return p.contains("connect.facebook.net", "fbq(") },
	},
	{
		Name: "Hotjar", Category: domain.CategoryAnalytics, Icon: "hotjar",
		Match: func(p *page) bool { return p.contains("static.hotjar.com", "hjsettings") },
	},
	{
		Name: "HubSpot", Category: domain.CategoryMarketing, Icon: "hubspot",
		Match: func(p *page) bool { return p.contains("js.hs-scripts.com", "js.hsforms.net", "hubspot") },
	},
	{
		Name: "Mailchimp", Category: domain.CategoryMarketing, Icon: "mailchimp",
		Match: func(p *page) bool { return p.contains("list-manage.com", "chimpstatic.com") },
	},
	{
		Name: "Klaviyo", Category: domain.CategoryMarketing, Icon: "klaviyo",
		Match: func(p *page) bool { return p.contains("klaviyo.com", "_learnq") },
	},
	{
		Name: "Intercom", Category: domain.CategoryChat, Icon: "intercom",
		Match: func(p *page) bool { return p.contains("widget.intercom.io", "intercomsettings") },
	},
	{
		Name: "Drift", Category: domain.CategoryChat, Icon: "drift",
		Match: func(p *page) bool { return p.contains("js.driftt.com", "drift.load") },
	},
	{
		Name: "Zendesk", Category: domain.CategoryChat, Icon: "zendesk",
		Match: func(p *page) bool { return p.contains("zdassets.com", "zendesk.com/embeddable") },
	},
	{
		Name: "Crisp", Category: domain.CategoryChat, Icon: "crisp",
		Match: func(p *page) bool { return p.contains("client.crisp.chat") },
	},
	{
		Name: "Tawk.to", Category: domain.CategoryChat, Icon: "tawk",
		Match: func(p *page) bool { return p.contains("embed.tawk.to") },
	},
	{
		Name: "Cloudflare", Category: domain.CategoryHosting, Icon: "cloudflare",
		Match: func(p *page) bool { return p.contains("/cdn-cgi/", "cloudflareinsights.com") },
	},
	{
		Name: "Netlify", Category: domain.CategoryHosting, Icon: "netlify",
		Match: func(p *page) bool { return p.contains(".netlify.app", "netlify-identity") },
	},
	{
		Name: "Vercel", Category: domain.CategoryHosting, Icon: "vercel",
		Match: func(p *page) bool { return p.contains(".vercel.app", "/_vercel/insights") },
	},
	{
		Name: "Stripe", Category: domain.CategoryPayments, Icon: "stripe",
		Match: func(p *page) bool { return p.contains("js.stripe.com") },
	},
	{
		Name: "PayPal", Category: domain.CategoryPayments, Icon: "paypal",
		Match: func(p *page) bool { return p.contains("paypal.com/sdk", "paypalobjects.com") },
	},
	{
		Name: "Optimizely", Category: domain.CategoryTesting, Icon: "optimizely",
		Match: func(p *page) bool { return p.contains("cdn.optimizely.com") },
	},
	{
		Name: "VWO", Category: domain.CategoryTesting, Icon: "vwo",
		Match: func(p *page) bool { return p.contains("visualwebsiteoptimizer.com", "_vwo_code") },
	},
	{
		Name: "Typeform", Category: domain.CategoryForms, Icon: "typeform",
		Match: func(p *page) bool { return p.contains("embed.typeform.com", "typeform.com/to/") },
	},
	{
		Name: "Jotform", Category: domain.CategoryForms, Icon: "jotform",
		Match: func(p *page) bool { return p.contains("jotform.com/jsform", "form.jotform.com") },
	},
	{
		Name: "Trustpilot", Category: domain.CategoryReviews, Icon: "trustpilot",
		Match: func(p *page) bool { return p.contains("widget.trustpilot.com", "trustpilot.com/review") },
	},
	{
		Name: "Yotpo", Category: domain.CategoryReviews, Icon: "yotpo",
		Match: func(p *page) bool { return p.contains("staticw2.yotpo.com", "yotpo.com") },
	},
	{
		Name: "Calendly", Category: domain.CategoryScheduling, Icon: "calendly",
		Match: func(p *page) bool { return p.contains("calendly.com") },
	},
	{
		Name: "accessiBe", Category: domain.CategoryAccessibility, Icon: "accessibe",
		Match: func(p *page) bool { return p.contains("acsbapp.com", "accessibe") },
	},
	{
		Name: "UserWay", Category: domain.CategoryAccessibility, Icon: "userway",
		Match: func(p *page) bool { return p.contains("userway.org") },
	},
	{
		Name: "OneTrust", Category: domain.CategoryPrivacy, Icon: "onetrust",
		Match: func(p *page) bool { return p.contains("cdn.cookielaw.org", "onetrust") },
	},
	{
		Name: "Cookiebot", Category: domain.CategoryPrivacy, Icon: "cookiebot",
		Match: func(p *page) bool { return p.contains("consent.cookiebot.com") },
	},
	{
		Name: "YouTube", Category: domain.CategoryVideo, Icon: "youtube",
		Match: func(p *page) bool { return p.contains("youtube.com/embed", "youtube-nocookie.com") },
	},
	{
		Name: "Vimeo", Category: domain.CategoryVideo, Icon: "vimeo",
		Match: func(p *page) bool { return p.contains("player.vimeo.com") },
	},
	{
		Name: "Wistia", Category: domain.CategoryVideo, Icon: "wistia",
		Match: func(p *page) bool { return p.contains("fast.wistia.com", "fast.wistia.net") },
	},
	{
		Name: "Google Maps", Category: domain.CategoryMaps, Icon: "gmaps",
		Match: func(p *page) bool { return p.contains("maps.googleapis.com", "google.com/maps/embed") },
	},
	{
		Name: "Google Fonts", Category: domain.CategoryFonts, Icon: "gfonts",
		Match: func(p *page) bool { return p.contains("fonts.googleapis.com") },
	},
	{
		Name: "Adobe Fonts", Category: domain.CategoryFonts, Icon: "typekit",
		Match: func(p *page) bool { return p.contains("use.typekit.net") },
	},
}
