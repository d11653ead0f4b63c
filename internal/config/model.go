// ABOUTME: Model configuration schema for model_config.toml
// ABOUTME: API providers, model definitions and per-task model assignments

package config

import (
	"errors"
	"fmt"
)

// ModelConfig represents the model configuration
type ModelConfig struct {
	Models          []ModelInfo     `toml:"models" comment:"Model definitions"`
	ModelTaskConfig ModelTaskConfig `toml:"model_task_config" comment:"Models assigned to each task"`
	APIProviders    []APIProvider   `toml:"api_providers" comment:"API providers"`
}

func (c *ModelConfig) Validate() error {
	if len(c.Models) == 0 {
		return errors.New("models must not be empty, configure at least one model")
	}
	if len(c.APIProviders) == 0 {
		return errors.New("api_providers must not be empty, configure at least one provider")
	}

	providers := make(map[string]bool, len(c.APIProviders))
	for _, p := range c.APIProviders {
		if providers[p.Name] {
			return fmt.Errorf("duplicate api provider name '%s'", p.Name)
		}
		providers[p.Name] = true
	}
	models := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if models[m.Name] {
			return fmt.Errorf("duplicate model name '%s'", m.Name)
		}
		models[m.Name] = true
	}
	for _, m := range c.Models {
		if m.ModelIdentifier == "" {
			return fmt.Errorf("model '%s': model_identifier must not be empty", m.Name)
		}
		if !providers[m.APIProvider] {
			return fmt.Errorf("model '%s': api_provider '%s' does not exist", m.Name, m.APIProvider)
		}
	}
	return nil
}

// APIProvider holds connection settings for one LLM API provider
type APIProvider struct {
	Name          string `toml:"name" comment:"Provider name, referenced by models[].api_provider"`
	BaseURL       string `toml:"base_url" comment:"Provider base URL"`
	APIKey        string `toml:"api_key,secret" comment:"API key, ${ENV_VAR} references are expanded at load time"`
	ClientType    string `toml:"client_type" default:"openai" comment:"Client type (openai or gemini)"`
	MaxRetry      int    `toml:"max_retry" default:"2" comment:"Maximum retries when a call to a model fails"`
	Timeout       int    `toml:"timeout" default:"10" comment:"Request timeout in seconds"`
	RetryInterval int    `toml:"retry_interval" default:"10" comment:"Seconds between retries"`
}

func (p *APIProvider) Validate() error {
	if p.APIKey == "" {
		return errors.New("api_key must not be empty")
	}
	if p.BaseURL == "" && p.ClientType != "gemini" {
		return errors.New("base_url must not be empty")
	}
	if p.Name == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

// ModelInfo describes one model offered by a provider
type ModelInfo struct {
	ModelIdentifier string         `toml:"model_identifier" comment:"Model identifier as given by the provider"`
	Name            string         `toml:"name" comment:"Model name, referenced by model_task_config"`
	APIProvider     string         `toml:"api_provider" comment:"Name of the provider in api_providers"`
	PriceIn         float64        `toml:"price_in" comment:"Input price per million tokens, for usage statistics"`
	PriceOut        float64        `toml:"price_out" comment:"Output price per million tokens, for usage statistics"`
	ForceStreamMode bool           `toml:"force_stream_mode" comment:"Force streaming for models without non-streaming output"`
	ExtraParams     map[string]any `toml:"extra_params" comment:"Extra request parameters"`
}

func (m *ModelInfo) Validate() error {
	if m.ModelIdentifier == "" {
		return errors.New("model_identifier must not be empty")
	}
	if m.Name == "" {
		return errors.New("name must not be empty")
	}
	if m.APIProvider == "" {
		return errors.New("api_provider must not be empty")
	}
	return nil
}

// TaskConfig assigns models to one task
type TaskConfig struct {
	ModelList   []string `toml:"model_list" comment:"Model names used for the task"`
	MaxTokens   int      `toml:"max_tokens" default:"1024" comment:"Maximum output tokens"`
	Temperature float64  `toml:"temperature" default:"0.3" comment:"Sampling temperature"`
}

// ModelTaskConfig holds the task assignments
type ModelTaskConfig struct {
	Utils             TaskConfig `toml:"utils" comment:"Models for components such as stickers, naming, relationships and mood, required"`
	UtilsSmall        TaskConfig `toml:"utils_small" comment:"Small utility model, called often, a fast model is recommended"`
	Replyer           TaskConfig `toml:"replyer" comment:"Primary reply model, also used by the expressor and expression learning"`
	VLM               TaskConfig `toml:"vlm" comment:"Vision model"`
	Voice             TaskConfig `toml:"voice" comment:"Speech recognition model"`
	ToolUse           TaskConfig `toml:"tool_use" comment:"Tool use model, must support tool calls"`
	Planner           TaskConfig `toml:"planner" comment:"Planner model"`
	Embedding         TaskConfig `toml:"embedding" comment:"Embedding model"`
	LPMMEntityExtract TaskConfig `toml:"lpmm_entity_extract" comment:"LPMM entity extraction model"`
	LPMMRDFBuild      TaskConfig `toml:"lpmm_rdf_build" comment:"LPMM RDF build model"`
	LPMMQA            TaskConfig `toml:"lpmm_qa" comment:"LPMM question answering model"`
}

// FindModel returns the model named name.
func FindModel(c *ModelConfig, name string) (*ModelInfo, bool) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// FindProvider returns the provider named name.
func FindProvider(c *ModelConfig, name string) (*APIProvider, bool) {
	for i := range c.APIProviders {
		if c.APIProviders[i].Name == name {
			return &c.APIProviders[i], true
		}
	}
	return nil, false
}

// ProviderFor resolves the provider serving the named model.
func ProviderFor(c *ModelConfig, model string) (*APIProvider, error) {
	m, ok := FindModel(c, model)
	if !ok {
		return nil, fmt.Errorf("unknown model '%s'", model)
	}
	p, ok := FindProvider(c, m.APIProvider)
	if !ok {
		return nil, fmt.Errorf("model '%s': unknown api provider '%s'", model, m.APIProvider)
	}
	return p, nil
}

// DefaultModelConfig returns the model configuration written when no file
// exists yet. Its key is a placeholder to be replaced by the user.
func DefaultModelConfig() *ModelConfig {
	task := func(maxTokens int, temperature float64) TaskConfig {
		return TaskConfig{ModelList: []string{"deepseek-v3"}, MaxTokens: maxTokens, Temperature: temperature}
	}
	return &ModelConfig{
		Models: []ModelInfo{{
			ModelIdentifier: "deepseek-chat",
			Name:            "deepseek-v3",
			APIProvider:     "DeepSeek",
			PriceIn:         2,
			PriceOut:        8,
			ExtraParams:     map[string]any{},
		}},
		ModelTaskConfig: ModelTaskConfig{
			Utils:             task(2048, 0.2),
			UtilsSmall:        task(2048, 0.7),
			Replyer:           task(2048, 0.3),
			VLM:               TaskConfig{ModelList: []string{}, MaxTokens: 256, Temperature: 0.3},
			Voice:             TaskConfig{ModelList: []string{}, MaxTokens: 1024, Temperature: 0.3},
			ToolUse:           task(800, 0.7),
			Planner:           task(800, 0.3),
			Embedding:         TaskConfig{ModelList: []string{}, MaxTokens: 1024, Temperature: 0.3},
			LPMMEntityExtract: task(800, 0.2),
			LPMMRDFBuild:      task(800, 0.2),
			LPMMQA:            task(800, 0.7),
		},
		APIProviders: []APIProvider{{
			Name:          "DeepSeek",
			BaseURL:       "https://api.deepseek.com/v1",
			APIKey:        "${DEEPSEEK_API_KEY}",
			ClientType:    "openai",
			MaxRetry:      2,
			Timeout:       30,
			RetryInterval: 10,
		}},
	}
}
