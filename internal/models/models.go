package models

import (
	"time"
)

// Provider kinds for an Instance
const (
	ProviderBridge   = "bridge"
	ProviderCloudAPI = "cloud-api"
)

// Instance represents a configured gateway connection owned by a team
type Instance struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TeamID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_instances_team_name" json:"team_id"`
	Name          string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_instances_team_name" json:"name"`
	Provider      string    `gorm:"type:varchar(20);not null" json:"provider"` // bridge | cloud-api
	APIURL        string    `gorm:"type:text" json:"api_url"`                  // bridge base URL
	APIKey        string    `gorm:"type:text" json:"-"`                        // bridge apikey header
	Token         string    `gorm:"type:text" json:"-"`                        // cloud-api bearer token
	PhoneNumberID string    `gorm:"type:varchar(64)" json:"phone_number_id"`
	BusinessID    string    `gorm:"type:varchar(64)" json:"business_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Instance) TableName() string {
	return "instances"
}

// Chat is one conversation thread per (team, instance, recipient)
type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TeamID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chats_team_instance_jid" json:"team_id"`
	InstanceID    uint      `gorm:"not null;uniqueIndex:idx_chats_team_instance_jid" json:"instance_id"`
	RemoteJID     string    `gorm:"column:remote_jid;type:varchar(64);not null;uniqueIndex:idx_chats_team_instance_jid" json:"remote_jid"`
	Name          string    `gorm:"type:varchar(255)" json:"name"`
	LastText      string    `gorm:"type:text" json:"last_text"`
	LastTimestamp time.Time `json:"last_timestamp"`
	LastFromMe    bool      `json:"last_from_me"`
	LastStatus    string    `gorm:"type:varchar(20)" json:"last_status"`
	UnreadCount   int       `gorm:"default:0" json:"unread_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message delivery statuses
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Message is an immutable log row keyed by provider-assigned id
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"message_id"`
	ChatID    uint      `gorm:"index;not null" json:"chat_id"`
	FromMe    bool      `json:"from_me"`
	Type      string    `gorm:"type:varchar(20)" json:"type"` // text|image|video|document|audio|template|system
	Text      string    `gorm:"type:text" json:"text"`
	MediaURL  string    `gorm:"type:text" json:"media_url"`
	MimeType  string    `gorm:"type:varchar(100)" json:"mime_type"`
	Caption   string    `gorm:"type:text" json:"caption"`
	Duration  int       `gorm:"default:0" json:"duration"`
	PTT       bool      `gorm:"default:false" json:"ptt"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	QuotedID  string    `gorm:"type:varchar(255)" json:"quoted_id"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Template represents an approved, provider-registered message template
type Template struct {
	ID         string `gorm:"primaryKey" json:"id"`
	TeamID     string `gorm:"type:varchar(64);index" json:"team_id"`
	Name       string `gorm:"type:varchar(255)" json:"name"`
	Language   string `gorm:"type:varchar(50)" json:"language"`
	Category   string `gorm:"type:varchar(100)" json:"category"`
	Status     string `gorm:"type:varchar(50)" json:"status"`
	Components string `gorm:"type:text" json:"components"` // JSON components (HEADER/BODY/FOOTER/BUTTONS)
}

func (Template) TableName() string {
	return "templates"
}

// Campaign statuses
const (
	CampaignStatusDraft      = "draft"
	CampaignStatusProcessing = "processing"
	CampaignStatusCompleted  = "completed"
)

// Campaign is a bulk-send job against one instance and template
type Campaign struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TeamID      string    `gorm:"type:varchar(64);index;not null" json:"team_id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	InstanceID  uint      `gorm:"not null" json:"instance_id"`
	TemplateID  string    `gorm:"type:varchar(255);not null" json:"template_id"`
	Status      string    `gorm:"type:varchar(20);default:'draft'" json:"status"`
	TotalLeads  int       `gorm:"default:0" json:"total_leads"`
	SentCount   int       `gorm:"default:0" json:"sent_count"`
	FailedCount int       `gorm:"default:0" json:"failed_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// CampaignLead statuses; sending marks a claimed, in-flight lead
const (
	LeadStatusPending = "pending"
	LeadStatusSending = "sending"
	LeadStatusSent    = "sent"
	LeadStatusFailed  = "failed"
)

// CampaignLead is one recipient row per campaign
type CampaignLead struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CampaignID uint       `gorm:"index:idx_leads_campaign_status;not null" json:"campaign_id"`
	Phone      string     `gorm:"type:varchar(50);not null" json:"phone"`
	Variables  string     `gorm:"type:text" json:"variables"` // JSON key->value map
	Status     string     `gorm:"type:varchar(20);default:'pending';index:idx_leads_campaign_status" json:"status"`
	ClaimID    string     `gorm:"type:varchar(64);index" json:"-"` // batch claim marker, see store.ClaimPendingLeads
	Error      string     `gorm:"type:text" json:"error"`
	SentAt     *time.Time `json:"sent_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CampaignLead) TableName() string {
	return "campaign_leads"
}
