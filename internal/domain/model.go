package domain

import "time"

// Core domain models shared across the pipeline. Wire/request shapes live next
// to the clients that speak them; keep these decoupled where helpful.

type TechCategory string

const (
	CategoryCMS           TechCategory = "cms"
	CategoryEcommerce     TechCategory = "ecommerce"
	CategoryFramework     TechCategory = "framework"
	CategoryTheme         TechCategory = "theme"
	CategoryPlugin        TechCategory = "plugin"
	CategoryBuildTool     TechCategory = "build_tool"
	CategoryAnalytics     TechCategory = "analytics"
	CategoryMarketing     TechCategory = "marketing"
	CategoryChat          TechCategory = "chat"
	CategoryHosting       TechCategory = "hosting"
	CategoryPayments      TechCategory = "payments"
	CategoryTesting       TechCategory = "testing"
	CategoryForms         TechCategory = "forms"
	CategoryReviews       TechCategory = "reviews"
	CategoryScheduling    TechCategory = "scheduling"
	CategoryAccessibility TechCategory = "accessibility"
	CategoryPrivacy       TechCategory = "privacy"
	CategoryVideo         TechCategory = "video"
	CategoryMaps          TechCategory = "maps"
	CategoryFonts         TechCategory = "fonts"
)

// TechStackEntry is one classified technology. Entries in a snapshot are
// unique by Name; the first detector to claim a name wins.
type TechStackEntry struct {
	Name     string       `json:"name"`
	Category TechCategory `json:"category"`
	Icon     string       `json:"icon"`
}

type ContactType string

const (
	ContactGeneric      ContactType = "generic"
	ContactPersonal     ContactType = "personal"
	ContactSchema       ContactType = "schema"
	ContactContactPoint ContactType = "contact_point"
	ContactPhone        ContactType = "phone"
)

type ContactSource string

const (
	SourcePage           ContactSource = "page"
	SourceStructuredData ContactSource = "structured_data"
)

// Contact is a harvested point of contact, deduplicated by email (or phone
// when no email is present), first occurrence wins.
type Contact struct {
	Email  string        `json:"email,omitempty"`
	Phone  string        `json:"phone,omitempty"`
	Name   string        `json:"name,omitempty"`
	Type   ContactType   `json:"type"`
	Source ContactSource `json:"source"`
}

// SignalSet holds independently derived business signals. Boolean flags must
// equal len(backing array) > 0 where an array backs them.
type SignalSet struct {
	HasContactForm bool     `json:"hasContactForm"`
	HasSSL         bool     `json:"hasSSL"`
	PhoneNumbers   []string `json:"phoneNumbers"`
	Emails         []string `json:"emails"`
	SocialLinks    []string `json:"socialLinks"`
	CompanyName    string   `json:"companyName,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// Hint is one threshold-based performance finding.
type Hint struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// PageSnapshot is the immutable bundle of detection results for one page
// view. Created fresh per detection call and never mutated afterwards.
type PageSnapshot struct {
	URL              string           `json:"url"`
	Domain           string           `json:"domain"`
	Title            string           `json:"title"`
	TechStack        []TechStackEntry `json:"techStack"`
	Signals          SignalSet        `json:"signals"`
	Contacts         []Contact        `json:"contacts"`
	PerformanceHints []Hint           `json:"performanceHints"`
}

type AuditStatus string

const (
	AuditRequested  AuditStatus = "requested"
	AuditProcessing AuditStatus = "processing"
	AuditCompleted  AuditStatus = "completed"
	AuditFailed     AuditStatus = "failed"
	AuditTimedOut   AuditStatus = "timedOut"
)

// Terminal reports whether an audit can no longer change state.
func (s AuditStatus) Terminal() bool {
	return s == AuditCompleted || s == AuditFailed || s == AuditTimedOut
}

// AuditScores are the sub-scores extracted on completion. Each field may be
// individually absent.
type AuditScores struct {
	Mobile        *int `json:"mobile,omitempty"`
	Desktop       *int `json:"desktop,omitempty"`
	SEO           *int `json:"seo,omitempty"`
	Accessibility *int `json:"accessibility,omitempty"`
	BestPractices *int `json:"bestPractices,omitempty"`
}

// AuditJob tracks a remote audit task. Mutated only by polling responses,
// terminal once completed, failed or timed out. Scores is nil unless the job
// completed.
type AuditJob struct {
	ID     string       `json:"id"`
	Status AuditStatus  `json:"status"`
	Scores *AuditScores `json:"scores,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AuthSession is the bearer token plus identity. Replaced wholesale on
// resync, cleared on sign-out, never partially mutated.
type AuthSession struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s AuthSession) Authenticated() bool { return s.Token != "" }

// Preferences are the user-tunable knobs persisted alongside the session.
type Preferences struct {
	Tone           string `json:"tone,omitempty"`
	SchedulingLink string `json:"schedulingLink,omitempty"`
}

type LeadTier string

const (
	TierHot       LeadTier = "hot"
	TierWarm      LeadTier = "warm"
	TierPotential LeadTier = "potential"
)

// LeadRecord is the scored prospect returned by the CRM. LinkedAuditID may be
// attached after the fact when an audit completes after submission.
type LeadRecord struct {
	ID            string   `json:"id"`
	Domain        string   `json:"domain"`
	Score         int      `json:"score"`
	Tier          LeadTier `json:"tier"`
	Factors       []string `json:"factors"`
	PitchAngles   []string `json:"pitchAngles"`
	LinkedAuditID string   `json:"linkedAuditId,omitempty"`
}

// Analysis is one queued run of the pipeline against a URL.
type Analysis struct {
	ID         string
	URL        string
	Domain     string
	Status     string // queued|running|completed|failed
	Stage      string // fetching|detecting|auditing|submitting
	LeadID     *string
	Error      *string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
