package session

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ClinicMode selects the register used for generated text.
type ClinicMode string

const (
	ModePatientFriendly ClinicMode = "patient_friendly"
	ModeClinician       ClinicMode = "clinician"
)

// Recommendation is the urgency tier a case is triaged into.
type Recommendation string

const (
	RecSelfCare   Recommendation = "self_care"
	RecScheduleGP Recommendation = "schedule_gp"
	RecUrgent     Recommendation = "urgent"
)

// Bounds enforced by normalization. Every value read from or written to a
// store passes through these, so a corrupted or partially written document
// can never violate them for a consumer.
const (
	MaxHistoryMessages = 40
	MaxMessageChars    = 2000
	MaxSummaryChars    = 1200
	MaxArrayItems      = 20
	MaxArrayItemChars  = 120
)

// ChatMessage is one turn of the intake conversation.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Profile holds the five bounded free-text intake fields.
type Profile struct {
	AgeRange    string `json:"ageRange"`
	Sex         string `json:"sex"`
	Conditions  string `json:"conditions"`
	Allergies   string `json:"allergies"`
	Medications string `json:"medications"`
}

// ProfilePatch is a partial profile update. Nil fields preserve the stored
// value; non-nil fields overwrite it after normalization.
type ProfilePatch struct {
	AgeRange    *string `json:"ageRange,omitempty"`
	Sex         *string `json:"sex,omitempty"`
	Conditions  *string `json:"conditions,omitempty"`
	Allergies   *string `json:"allergies,omitempty"`
	Medications *string `json:"medications,omitempty"`
}

// CaseData is the structured case record extracted from a conversation.
type CaseData struct {
	Symptoms  []string `json:"symptoms"`
	Duration  string   `json:"duration"`
	Severity  string   `json:"severity"`
	FeverC    *float64 `json:"feverC"`
	RedFlags  []string `json:"redFlags"`
	Meds      []string `json:"meds"`
	Allergies []string `json:"allergies"`
	Notes     string   `json:"notes"`
}

// TriageResult is the outcome of one triage run.
type TriageResult struct {
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
	RedFlags       []string       `json:"redFlags"`
	SOAPNote       string         `json:"soapNote"`
	GeneratedAt    string         `json:"generatedAt"`
}

// State is the single durable document owned by one session key.
type State struct {
	Profile             Profile       `json:"profile"`
	History             []ChatMessage `json:"history"`
	ConversationSummary string        `json:"conversationSummary"`
	DraftCase           *CaseData     `json:"draftCase"`
	LastTriage          *TriageResult `json:"lastTriage"`
	ClinicMode          ClinicMode    `json:"clinicMode"`
}

// DefaultProfile returns an empty profile.
func DefaultProfile() Profile {
	return Profile{}
}

// DefaultCaseData returns a case with every field empty and fever unknown.
func DefaultCaseData() CaseData {
	return CaseData{
		Symptoms:  []string{},
		RedFlags:  []string{},
		Meds:      []string{},
		Allergies: []string{},
	}
}

// DefaultState returns the document a fresh session key starts from.
func DefaultState() *State {
	return &State{
		Profile:    DefaultProfile(),
		History:    []ChatMessage{},
		ClinicMode: ModePatientFriendly,
	}
}

// AppendToHistory appends msg and evicts the oldest entries beyond the cap.
// The message must already be normalized.
func AppendToHistory(st *State, msg ChatMessage) {
	st.History = append(st.History, msg)
	if n := len(st.History); n > MaxHistoryMessages {
		st.History = st.History[n-MaxHistoryMessages:]
	}
}

// MergeProfile applies a normalized patch onto an existing profile,
// preserving fields the patch does not supply.
func MergeProfile(base Profile, patch ProfilePatch) Profile {
	if patch.AgeRange != nil {
		base.AgeRange = clampString(*patch.AgeRange, 80)
	}
	if patch.Sex != nil {
		base.Sex = clampString(*patch.Sex, 40)
	}
	if patch.Conditions != nil {
		base.Conditions = clampString(*patch.Conditions, 300)
	}
	if patch.Allergies != nil {
		base.Allergies = clampString(*patch.Allergies, 300)
	}
	if patch.Medications != nil {
		base.Medications = clampString(*patch.Medications, 300)
	}
	return base
}
