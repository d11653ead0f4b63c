// ABOUTME: Bot configuration schema for bot_config.toml
// ABOUTME: Every section of the bot's behaviour settings with defaults and descriptions

package config

import (
	"fmt"
	"regexp"

	"github.com/Pomelo32141/MaiBot/internal/schema"
)

// MMCVersion is the application release this build belongs to.
const MMCVersion = "0.12.0"

// Schema versions of the two configuration files. Increase the version
// whenever a schema changes: major for application releases, minor for large
// content changes, patch for small ones.
const (
	ConfigVersion      = "7.18.4"
	ModelConfigVersion = "1.7.7"
)

// Config represents the complete bot configuration
type Config struct {
	Bot                 BotConfig                 `toml:"bot"`
	Personality         PersonalityConfig         `toml:"personality"`
	Relationship        RelationshipConfig        `toml:"relationship"`
	Chat                ChatConfig                `toml:"chat"`
	MessageReceive      MessageReceiveConfig      `toml:"message_receive"`
	Memory              MemoryConfig              `toml:"memory"`
	Expression          ExpressionConfig          `toml:"expression"`
	Tool                ToolConfig                `toml:"tool"`
	Mood                MoodConfig                `toml:"mood"`
	Voice               VoiceConfig               `toml:"voice"`
	Emoji               EmojiConfig               `toml:"emoji"`
	KeywordReaction     KeywordReactionConfig     `toml:"keyword_reaction"`
	ResponsePostProcess ResponsePostProcessConfig `toml:"response_post_process"`
	ChineseTypo         ChineseTypoConfig         `toml:"chinese_typo"`
	ResponseSplitter    ResponseSplitterConfig    `toml:"response_splitter"`
	Telemetry           TelemetryConfig           `toml:"telemetry"`
	Debug               DebugConfig               `toml:"debug"`
	Experimental        ExperimentalConfig        `toml:"experimental"`
	MaimMessage         MaimMessageConfig         `toml:"maim_message"`
	LPMMKnowledge       LPMMKnowledgeConfig       `toml:"lpmm_knowledge"`
	Log                 LogConfig                 `toml:"log"`
	Database            DatabaseConfig            `toml:"database"`
}

// BotConfig holds the bot identity
type BotConfig struct {
	AliasNames []string `toml:"alias_names" comment:"Alias names the bot answers to"`
}

// PersonalityConfig holds persona prompts
type PersonalityConfig struct {
	Personality      string   `toml:"personality" default:"是一个女大学生，现在在读大二，会刷贴吧。" comment:"Personality, preferably within 120 characters, describing traits and identity"`
	ReplyStyle       string   `toml:"reply_style" default:"请回复的平淡一些，简短一些，说中文，不要刻意突出自身学科背景。可以参考贴吧，知乎和微博的回复风格。" comment:"Reply style and speaking habits"`
	Interest         string   `toml:"interest" default:"对技术相关话题，游戏和动漫相关话题感兴趣，也对日常话题感兴趣，不喜欢太过沉重严肃的话题" comment:"Interests, affecting which topics the bot replies to"`
	States           []string `toml:"states" default:"['是一个女大学生，喜欢上网聊天，会刷小红书。', '是一个大二心理学生，会刷贴吧和中国知网。', '是一个赛博网友，最近很想吐槽人。']" comment:"Alternative states randomly substituted for personality"`
	StateProbability float64  `toml:"state_probability" default:"0.0" comment:"Probability (0.0-1.0) of substituting a state each time the persona is built"`
	PlanStyle        string   `toml:"plan_style" default:"1.思考**所有**的可用的action中的**每个动作**是否符合当下条件，如果动作使用条件符合聊天内容就使用\n2.如果相同的内容已经被执行，请不要重复执行\n3.请控制你的发言频率，不要太过频繁的发言\n4.如果有人对你感到厌烦，请减少回复\n5.如果有人对你进行攻击，或者情绪激动，请你以合适的方法应对" comment:"Planner prompt describing behaviour style"`
	VisualStyle      string   `toml:"visual_style" default:"请用中文描述这张图片的内容。如果有文字，请把文字描述概括出来，请留意其主题，直观感受，输出为一段平文本，最多30字，请注意不要分点，就输出一段文本" comment:"Image description prompt, changing it is not recommended"`
	PrivatePlanStyle string   `toml:"private_plan_style" comment:"Behaviour rules for private chats"`
}

// RelationshipConfig holds relationship system settings
type RelationshipConfig struct {
	EnableRelationship bool `toml:"enable_relationship" default:"true" comment:"Enable the relationship system"`
}

// TalkValueRule adjusts a talk frequency for one chat and time range
type TalkValueRule struct {
	schema.Tuple
	Target string
	Time   string
	Value  float64
}

// ChatConfig holds conversation pacing settings
type ChatConfig struct {
	AtBotInevitableReply       float64         `toml:"at_bot_inevitable_reply" default:"1.0" comment:"Reply boost when the bot is @-mentioned, 1 always replies, 0 adds nothing"`
	MaxContextSize             int             `toml:"max_context_size" default:"25" comment:"Maximum context length"`
	MentionedBotReply          bool            `toml:"mentioned_bot_reply" default:"true" comment:"Always reply when mentioned"`
	PlannerSmooth              float64         `toml:"planner_smooth" default:"3.0" comment:"Planner smoothing, higher values lower planner load and slightly slow reactions, 2-5 recommended, 0 disables, must be >= 0"`
	TalkValue                  float64         `toml:"talk_value" default:"1.0" comment:"Thinking frequency, smaller is quieter, range 0-1"`
	EnableTalkValueRules       bool            `toml:"enable_talk_value_rules" default:"true" comment:"Enable dynamic talk frequency rules"`
	TalkValueRules             []TalkValueRule `toml:"talk_value_rules" default:"[['', '00:00-08:59', 0.8], ['', '09:00-22:59', 1.0]]"`
	ActiveChatValue            float64         `toml:"active_chat_value" default:"1.0" comment:"Proactive chat frequency, smaller means fewer proactive messages"`
	EnableActiveChatValueRules bool            `toml:"enable_active_chat_value_rules" default:"true" comment:"Enable dynamic proactive chat frequency rules"`
	ActiveChatValueRules       []TalkValueRule `toml:"active_chat_value_rules" default:"[['', '00:00-08:59', 0.3], ['', '09:00-22:59', 1.0]]" comment:"Proactive chat frequency rules, same format as talk_value_rules"`
}

var _ = schema.Describe[ChatConfig](map[string]string{
	"talk_value_rules": `
        Talk frequency rules per chat and time range.
        Format: [target, time, value]

        An empty target is global, otherwise "platform:id:type" where type is group or private. Chat rules take precedence over global ones.
        time is "HH:MM-HH:MM" and may cross midnight, e.g. "23:00-02:00".
        value is recommended within 0-1.

        Example:
        [
            ["", "00:00-08:59", 0.2],
            ["", "09:00-22:59", 1.0],
            ["qq:1919810:group", "20:00-23:59", 0.6],
            ["qq:114514:private", "00:00-23:59", 0.3],
        ]
    `,
})

// MessageReceiveConfig holds inbound message filters
type MessageReceiveConfig struct {
	BanWords     schema.Set[string] `toml:"ban_words" comment:"Messages containing these words are dropped"`
	BanMsgsRegex schema.Set[string] `toml:"ban_msgs_regex" comment:"Raw messages matching these regular expressions are dropped"`
}

func (c *MessageReceiveConfig) Validate() error {
	for pattern := range c.BanMsgsRegex {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex pattern in ban_msgs_regex: '%s': %w", pattern, err)
		}
	}
	return nil
}

// MemoryConfig holds memory limits
type MemoryConfig struct {
	MaxMemoryNumber      int `toml:"max_memory_number" default:"100" comment:"Maximum number of memories"`
	MemoryBuildFrequency int `toml:"memory_build_frequency" default:"1" comment:"Memory build frequency"`
}

// LearningRule configures expression learning for one chat
type LearningRule struct {
	schema.Tuple
	Chat              string
	UseExpression     bool
	EnableLearning    bool
	LearningIntensity float64
}

// ExpressionConfig holds expression learning settings
type ExpressionConfig struct {
	Mode             string         `toml:"mode" default:"classic" oneof:"classic,exp_model"`
	LearningList     []LearningRule `toml:"learning_list" default:"[['', true, true, 1.0]]"`
	ExpressionGroups [][]string     `toml:"expression_groups"`
}

var _ = schema.Describe[ExpressionConfig](map[string]string{
	"mode": `
        Expression mode
        classic: classic mode, exp_model: expression model mode
        The latter needs some learning time before it works well
    `,
	"learning_list": `
        Expression learning per chat
        Format: [chat, use_expression, enable_learning, learning_intensity]

        Example:
        [
            ["", true, true, 1.0],
            ["qq:1919810:private", true, true, 1.5],
            ["qq:114514:private", true, false, 0.5],
        ]

        chat uses the talk_value_rules target format, empty means global.
        learning_intensity scales learning frequency, the minimum interval is 300/intensity seconds.
    `,
	"expression_groups": `
        Chats in the same group share learned expressions
        Format: [["qq:12345:group", "qq:67890:private"], ...]
        A group of ["*"] shares across every chat and overrides other groups
    `,
})

// ToolConfig holds tool-use settings
type ToolConfig struct {
	EnableTool bool `toml:"enable_tool" comment:"Enable tools in chat"`
}

// MoodConfig holds mood system settings
type MoodConfig struct {
	EnableMood          bool    `toml:"enable_mood" default:"true" comment:"Enable the mood system"`
	MoodUpdateThreshold float64 `toml:"mood_update_threshold" default:"1.0" comment:"Mood update threshold, higher updates slower"`
	EmotionStyle        string  `toml:"emotion_style" default:"情绪较为稳定，但遭遇特定事件的时候起伏较大" comment:"Emotional traits shaping mood changes"`
}

// VoiceConfig holds speech recognition settings
type VoiceConfig struct {
	EnableASR bool `toml:"enable_asr" comment:"Enable speech recognition, requires the model_task_config.voice model"`
}

// EmojiConfig holds sticker collection settings
type EmojiConfig struct {
	EmojiChance       float64 `toml:"emoji_chance" default:"0.6" comment:"Base probability of sending a sticker"`
	MaxRegNum         int     `toml:"max_reg_num" default:"200" comment:"Maximum number of registered stickers"`
	DoReplace         bool    `toml:"do_replace" default:"true" comment:"Replace old stickers once the maximum is reached"`
	CheckInterval     int     `toml:"check_interval" default:"120" comment:"Interval in minutes for checking stickers (register, broken, delete)"`
	StealEmoji        bool    `toml:"steal_emoji" default:"true" comment:"Collect stickers seen in chats"`
	ContentFiltration bool    `toml:"content_filtration" comment:"Only keep stickers that satisfy filtration_prompt"`
	FiltrationPrompt  string  `toml:"filtration_prompt" default:"符合公序良俗" comment:"Requirement a sticker must satisfy to be kept"`
}

// KeywordRuleConfig is one keyword or regex reaction rule
type KeywordRuleConfig struct {
	Keywords []string `toml:"keywords" comment:"Keywords that trigger the rule"`
	Regex    []string `toml:"regex" comment:"Regular expressions that trigger the rule"`
	Reaction string   `toml:"reaction" comment:"Reaction when the rule triggers"`
}

func (r *KeywordRuleConfig) Validate() error {
	if len(r.Keywords) == 0 && len(r.Regex) == 0 {
		return fmt.Errorf("keyword rule needs at least one of keywords or regex")
	}
	if r.Reaction == "" {
		return fmt.Errorf("keyword rule needs a reaction")
	}
	for _, pattern := range r.Regex {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex '%s': %w", pattern, err)
		}
	}
	return nil
}

// KeywordReactionConfig holds keyword reaction rules
type KeywordReactionConfig struct {
	KeywordRules          []KeywordRuleConfig `toml:"keyword_rules" comment:"Keyword rules"`
	RegexRules            []KeywordRuleConfig `toml:"regex_rules" comment:"Regular expression rules"`
	EnableKeywordReaction bool                `toml:"enable_keyword_reaction" default:"true" comment:"Enable keyword reactions"`
}

// ResponsePostProcessConfig holds reply post-processing switches
type ResponsePostProcessConfig struct {
	EnableResponsePostProcess bool `toml:"enable_response_post_process" default:"true" comment:"Enable reply post-processing, including the typo generator and the splitter"`
}

// ChineseTypoConfig holds typo generator settings
type ChineseTypoConfig struct {
	Enable          bool    `toml:"enable" default:"true" comment:"Enable the Chinese typo generator"`
	ErrorRate       float64 `toml:"error_rate" default:"0.01" comment:"Single character substitution probability"`
	MinFreq         int     `toml:"min_freq" default:"9" comment:"Minimum character frequency threshold"`
	ToneErrorRate   float64 `toml:"tone_error_rate" default:"0.1" comment:"Tone error probability"`
	WordReplaceRate float64 `toml:"word_replace_rate" default:"0.006" comment:"Whole word substitution probability"`
}

// ResponseSplitterConfig holds reply splitting settings
type ResponseSplitterConfig struct {
	Enable                  bool `toml:"enable" default:"true" comment:"Enable the reply splitter"`
	MaxLength               int  `toml:"max_length" default:"512" comment:"Maximum reply length"`
	MaxSentenceNum          int  `toml:"max_sentence_num" default:"3" comment:"Maximum number of sentences per reply"`
	EnableKaomojiProtection bool `toml:"enable_kaomoji_protection" comment:"Keep kaomoji intact when splitting"`
}

// TelemetryConfig holds telemetry settings
type TelemetryConfig struct {
	Enable bool `toml:"enable" default:"true" comment:"Enable telemetry"`
}

// DebugConfig holds debugging switches
type DebugConfig struct {
	ShowPrompt bool `toml:"show_prompt" comment:"Print prompts"`
}

// ExperimentalConfig is reserved for experimental features
type ExperimentalConfig struct{}

// MaimMessageConfig holds the message transport endpoint
type MaimMessageConfig struct {
	UseCustom bool     `toml:"use_custom" comment:"Use a custom maim_message configuration"`
	Host      string   `toml:"host" default:"127.0.0.1" comment:"Host address"`
	Port      int      `toml:"port" default:"8090" comment:"Port"`
	Mode      string   `toml:"mode" default:"ws" oneof:"ws,tcp" comment:"Connection mode, ws or tcp"`
	UseWSS    bool     `toml:"use_wss" comment:"Use a WSS secure connection"`
	CertFile  string   `toml:"cert_file" comment:"SSL certificate path, only used when use_wss is true"`
	KeyFile   string   `toml:"key_file" comment:"SSL key path, only used when use_wss is true"`
	AuthToken []string `toml:"auth_token,secret" comment:"API authentication tokens, empty disables authentication"`
}

// LPMMKnowledgeConfig holds knowledge base retrieval settings
type LPMMKnowledgeConfig struct {
	Enable                bool    `toml:"enable" default:"true" comment:"Enable the LPMM knowledge base"`
	RAGSynonymSearchTopK  int     `toml:"rag_synonym_search_top_k" default:"10" comment:"Top K for RAG synonym search"`
	RAGSynonymThreshold   float64 `toml:"rag_synonym_threshold" default:"0.8" comment:"Similarity threshold for RAG synonym search"`
	InfoExtractionWorkers int     `toml:"info_extraction_workers" default:"3" comment:"Concurrent entity extraction workers, keep at 5 or below for non-Pro models"`
	QARelationSearchTopK  int     `toml:"qa_relation_search_top_k" default:"10" comment:"Top K for QA relation search"`
	QARelationThreshold   float64 `toml:"qa_relation_threshold" default:"0.75" comment:"Similarity above which a relation counts as relevant"`
	QAParagraphSearchTopK int     `toml:"qa_paragraph_search_top_k" default:"1000" comment:"Top K for QA paragraph search, small values hurt results"`
	QAParagraphNodeWeight float64 `toml:"qa_paragraph_node_weight" default:"0.05" comment:"Paragraph node weight in graph search and PPR, unused when only DPR is searched"`
	QAEntFilterTopK       int     `toml:"qa_ent_filter_top_k" default:"10" comment:"Top K for QA entity filtering"`
	QAPPRDamping          float64 `toml:"qa_ppr_damping" default:"0.8" comment:"QA PageRank damping factor"`
	QAResTopK             int     `toml:"qa_res_top_k" default:"10" comment:"Top K of final QA results"`
	EmbeddingDimension    int     `toml:"embedding_dimension" default:"1024" comment:"Embedding dimension, must match the model output"`
}

// LogConfig holds logging output settings
type LogConfig struct {
	Level  string `toml:"level" default:"info" oneof:"debug,info,warn,error" comment:"Log level: debug, info, warn, error"`
	Format string `toml:"format" default:"text" oneof:"text,json" comment:"Log format: text (coloured) or json"`
}

// DatabaseConfig holds database location and schema maintenance settings
type DatabaseConfig struct {
	Path            string `toml:"path" default:"data/MaiBot.db" comment:"Database file, relative paths are resolved against the project root"`
	Driver          string `toml:"driver" default:"sqlite" oneof:"sqlite,sqlite3" comment:"SQLite driver: sqlite (pure Go) or sqlite3 (cgo)"`
	SyncConstraints bool   `toml:"sync_constraints" comment:"Rebuild tables whose NULL constraints differ from the models at startup"`
}
