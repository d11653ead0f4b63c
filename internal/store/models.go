// ABOUTME: Persisted model structs, one per table
// ABOUTME: Column mapping comes from db tags; pointer fields are nullable columns

package store

import "time"

// ChatStreams describes one chat stream and the user or group behind it.
type ChatStreams struct {
	ID             int64   `db:"id,pk"`
	StreamID       string  `db:"stream_id,unique,index,size=255"`
	CreateTime     float64 `db:"create_time"`
	GroupPlatform  *string `db:"group_platform,size=255"`
	GroupID        *string `db:"group_id,size=255"`
	GroupName      *string `db:"group_name,size=255"`
	LastActiveTime float64 `db:"last_active_time"`
	Platform       string  `db:"platform,size=255"`
	UserPlatform   string  `db:"user_platform,size=255"`
	UserID         string  `db:"user_id,size=255"`
	UserNickname   string  `db:"user_nickname,size=255"`
	UserCardname   *string `db:"user_cardname,size=255"`
}

func (ChatStreams) TableName() string { return "chat_streams" }

// LLMUsage records one model API call.
type LLMUsage struct {
	ID               int64     `db:"id,pk"`
	ModelName        string    `db:"model_name,index,size=255"`
	ModelAssignName  *string   `db:"model_assign_name,size=255"`
	ModelAPIProvider *string   `db:"model_api_provider,size=255"`
	UserID           string    `db:"user_id,index,size=255"`
	RequestType      string    `db:"request_type,index,size=255"`
	Endpoint         string    `db:"endpoint,size=500"`
	PromptTokens     int       `db:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens"`
	Cost             float64   `db:"cost"`
	TimeCost         *float64  `db:"time_cost"`
	Status           string    `db:"status,size=255"`
	Timestamp        time.Time `db:"timestamp,index,autonow"`
}

func (LLMUsage) TableName() string { return "llm_usage" }

// Emoji is a registered sticker image.
type Emoji struct {
	ID           int64    `db:"id,pk"`
	FullPath     string   `db:"full_path,unique,index,size=500"`
	Format       string   `db:"format,size=50"`
	EmojiHash    string   `db:"emoji_hash,index,size=255"`
	Description  string   `db:"description"`
	QueryCount   int      `db:"query_count,default=0"`
	IsRegistered bool     `db:"is_registered,default=0"`
	IsBanned     bool     `db:"is_banned,default=0"`
	Emotion      *string  `db:"emotion"`
	RecordTime   float64  `db:"record_time"`
	RegisterTime *float64 `db:"register_time"`
	UsageCount   int      `db:"usage_count,default=0"`
	LastUsedTime *float64 `db:"last_used_time"`
}

func (Emoji) TableName() string { return "emoji" }

// Messages stores a processed chat message with its flattened chat info.
type Messages struct {
	ID                     int64    `db:"id,pk"`
	MessageID              string   `db:"message_id,index,size=255"`
	Time                   float64  `db:"time"`
	ChatID                 string   `db:"chat_id,index,size=255"`
	ReplyTo                *string  `db:"reply_to,size=255"`
	InterestValue          *float64 `db:"interest_value"`
	KeyWords               *string  `db:"key_words"`
	KeyWordsLite           *string  `db:"key_words_lite"`
	IsMentioned            *bool    `db:"is_mentioned"`
	IsAt                   *bool    `db:"is_at"`
	ReplyProbabilityBoost  *float64 `db:"reply_probability_boost"`
	ChatInfoStreamID       string   `db:"chat_info_stream_id,size=255"`
	ChatInfoPlatform       string   `db:"chat_info_platform,size=255"`
	ChatInfoUserPlatform   string   `db:"chat_info_user_platform,size=255"`
	ChatInfoUserID         string   `db:"chat_info_user_id,size=255"`
	ChatInfoUserNickname   string   `db:"chat_info_user_nickname,size=255"`
	ChatInfoUserCardname   *string  `db:"chat_info_user_cardname,size=255"`
	ChatInfoGroupPlatform  *string  `db:"chat_info_group_platform,size=255"`
	ChatInfoGroupID        *string  `db:"chat_info_group_id,size=255"`
	ChatInfoGroupName      *string  `db:"chat_info_group_name,size=255"`
	ChatInfoCreateTime     float64  `db:"chat_info_create_time"`
	ChatInfoLastActiveTime float64  `db:"chat_info_last_active_time"`
	UserPlatform           *string  `db:"user_platform,size=255"`
	UserID                 *string  `db:"user_id,size=255"`
	UserNickname           *string  `db:"user_nickname,size=255"`
	UserCardname           *string  `db:"user_cardname,size=255"`
	ProcessedPlainText     *string  `db:"processed_plain_text"`
	DisplayMessage         *string  `db:"display_message"`
	PriorityMode           *string  `db:"priority_mode,size=255"`
	PriorityInfo           *string  `db:"priority_info"`
	AdditionalConfig       *string  `db:"additional_config"`
	IsEmoji                bool     `db:"is_emoji,default=0"`
	IsPicID                bool     `db:"is_picid,default=0"`
	IsCommand              bool     `db:"is_command,default=0"`
	IsNotify               bool     `db:"is_notify,default=0"`
	SelectedExpressions    *string  `db:"selected_expressions"`
}

func (Messages) TableName() string { return "messages" }

// ActionRecords logs an action the bot took in a chat.
type ActionRecords struct {
	ID                    int64   `db:"id,pk"`
	ActionID              string  `db:"action_id,index,size=255"`
	Time                  float64 `db:"time"`
	ActionReasoning       *string `db:"action_reasoning"`
	ActionName            string  `db:"action_name,size=255"`
	ActionData            string  `db:"action_data"`
	ActionDone            bool    `db:"action_done,default=0"`
	ActionBuildIntoPrompt bool    `db:"action_build_into_prompt,default=0"`
	ActionPromptDisplay   string  `db:"action_prompt_display"`
	ChatID                string  `db:"chat_id,index,size=255"`
	ChatInfoStreamID      string  `db:"chat_info_stream_id,size=255"`
	ChatInfoPlatform      string  `db:"chat_info_platform,size=255"`
}

func (ActionRecords) TableName() string { return "action_records" }

type Images struct {
	ID           int64   `db:"id,pk"`
	ImageID      string  `db:"image_id,size=255,default=''"`
	EmojiHash    string  `db:"emoji_hash,index,size=255"`
	Description  *string `db:"description"`
	Path         string  `db:"path,unique,size=500"`
	Count        int     `db:"count,default=1"`
	Timestamp    float64 `db:"timestamp"`
	Type         string  `db:"type,size=50"`
	VLMProcessed bool    `db:"vlm_processed,default=0"`
}

func (Images) TableName() string { return "images" }

type ImageDescriptions struct {
	ID                   int64   `db:"id,pk"`
	Type                 string  `db:"type,size=50"`
	ImageDescriptionHash string  `db:"image_description_hash,index,size=255"`
	Description          string  `db:"description"`
	Timestamp            float64 `db:"timestamp"`
}

func (ImageDescriptions) TableName() string { return "image_descriptions" }

// OnlineTime is one span of uptime; Duration is in minutes.
type OnlineTime struct {
	ID             int64     `db:"id,pk"`
	Timestamp      string    `db:"timestamp,autonow"`
	Duration       int       `db:"duration"`
	StartTimestamp time.Time `db:"start_timestamp,autonow"`
	EndTimestamp   time.Time `db:"end_timestamp,index,autonow"`
}

func (OnlineTime) TableName() string { return "online_time" }

// PersonInfo holds what the bot knows about one user.
type PersonInfo struct {
	ID           int64    `db:"id,pk"`
	IsKnown      bool     `db:"is_known,default=0"`
	PersonID     string   `db:"person_id,unique,index,size=255"`
	PersonName   *string  `db:"person_name,size=255"`
	NameReason   *string  `db:"name_reason"`
	Platform     string   `db:"platform,size=255"`
	UserID       string   `db:"user_id,index,size=255"`
	Nickname     *string  `db:"nickname,size=255"`
	MemoryPoints *string  `db:"memory_points"`
	KnowTimes    *float64 `db:"know_times"`
	KnowSince    *float64 `db:"know_since"`
	LastKnow     *float64 `db:"last_know"`
}

func (PersonInfo) TableName() string { return "person_info" }

// GroupInfo holds group metadata. MemberList is JSON text.
type GroupInfo struct {
	ID              int64    `db:"id,pk"`
	GroupID         string   `db:"group_id,unique,index,size=255"`
	GroupName       *string  `db:"group_name,size=255"`
	Platform        string   `db:"platform,size=255"`
	GroupImpression *string  `db:"group_impression"`
	MemberList      *string  `db:"member_list"`
	Topic           *string  `db:"topic"`
	CreateTime      *float64 `db:"create_time"`
	LastActive      *float64 `db:"last_active"`
	MemberCount     *int     `db:"member_count,default=0"`
}

func (GroupInfo) TableName() string { return "group_info" }

// Expression is a learned phrasing for a situation in a chat.
type Expression struct {
	ID             int64    `db:"id,pk"`
	Situation      string   `db:"situation,size=255"`
	Style          string   `db:"style"`
	Count          float64  `db:"count"`
	Context        *string  `db:"context"`
	ContextWords   *string  `db:"context_words"`
	LastActiveTime float64  `db:"last_active_time"`
	ChatID         string   `db:"chat_id,index,size=255"`
	Type           string   `db:"type,size=50"`
	CreateDate     *float64 `db:"create_date"`
}

func (Expression) TableName() string { return "expression" }

type MemoryChest struct {
	ID      int64   `db:"id,pk"`
	Title   string  `db:"title,size=255"`
	Content string  `db:"content"`
	ChatID  *string `db:"chat_id,size=255"`
	Locked  bool    `db:"locked,default=0"`
}

func (MemoryChest) TableName() string { return "memory_chest" }

// MemoryConflict records a contradiction found while merging memories.
type MemoryConflict struct {
	ID              int64    `db:"id,pk"`
	ConflictContent string   `db:"conflict_content"`
	Answer          *string  `db:"answer"`
	CreateTime      float64  `db:"create_time"`
	UpdateTime      float64  `db:"update_time"`
	Context         *string  `db:"context"`
	ChatID          *string  `db:"chat_id,size=255"`
	RaiseTime       *float64 `db:"raise_time"`
}

func (MemoryConflict) TableName() string { return "memory_conflicts" }
