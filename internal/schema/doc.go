// Package schema maps untyped configuration data onto typed Go structs.
//
// # Overview
//
// A schema type is a plain struct. Each exported field is one configuration
// key; nested structs are nested tables. Loading walks the struct in
// declaration order, converts every raw value to the declared field type and
// records which keys were defaulted (missing) and which were not recognized
// (redundant):
//
//	var d schema.Discrepancies
//	cfg, err := schema.Load[BotConfig](raw, &d)
//
// # Field Tags
//
//	type MaimMessageConfig struct {
//	    Host     string   `toml:"host" default:"127.0.0.1" comment:"Host address"`
//	    Port     int      `toml:"port" default:"8090"`
//	    Mode     string   `toml:"mode" default:"ws" oneof:"ws,tcp"`
//	    APIKey   string   `toml:"api_key,secret"`
//	    Required string   `toml:"required_field,required"`
//	}
//
// The key defaults to the snake_case field name. Keys starting with an
// underscore, and fields tagged toml:"-", are internal and never loaded or
// written. For string fields the default tag is the literal value; for every
// other type it is a TOML value such as [1, 2] or {a = 1}.
//
// # Supported Types
//
// bool, signed and unsigned integers, floats, strings, time.Duration, pointers
// (optional values), slices (lists), Set (unique values), fixed arrays and
// structs embedding Tuple (positional tuples), maps, any, and nested schema
// structs.
//
// # Descriptions
//
// Field descriptions come from the comment tag or from a side table registered
// with Describe. The side table is meant for longer, multi-line text:
//
//	var _ = schema.Describe[ChatConfig](map[string]string{
//	    "talk_value_rules": `
//	        Talk frequency rules.
//	        Format: [target, time, value]
//	    `,
//	})
//
// # Data-Only Types
//
// Schema types carry no behaviour. The only method allowed on a schema type is
// the post-construction hook:
//
//	func (c *KeywordRuleConfig) Validate() error
//
// Any other exported method makes Inspect fail with ErrMethodNotAllowed.
package schema
