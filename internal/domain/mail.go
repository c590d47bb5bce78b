package domain

type Language string

const (
	LanguagePolish  Language = "pl"
	LanguageEnglish Language = "en"
)

type MailKind string

const (
	MailCreateUser        MailKind = "create_user"
	MailOvertimePending   MailKind = "overtime_pending"
	MailOvertimeApproved  MailKind = "overtime_approved"
	MailOvertimeRejected  MailKind = "overtime_rejected"
	MailOvertimeCancelled MailKind = "overtime_cancelled"
	MailOvertimeCorrected MailKind = "overtime_corrected"
)

type MailMessage struct {
	Type MailKind `json:"type"`
	To   string   `json:"to"`
	Lang Language `json:"lang"`
	Data any      `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type OvertimeMailData struct {
	RecipientName string  `json:"recipientName"`
	InternalID    string  `json:"internalId"`
	Hours         float64 `json:"hours"`
	WorkDate      string  `json:"workDate"`
	ActorName     string  `json:"actorName"`
	Reason        string  `json:"reason"`
	Link          string  `json:"link"`
}
