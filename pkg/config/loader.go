package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads a configuration file from the given path.
// The format is determined by the file extension:
// - .json for JSON
// - .yaml or .yml for YAML
// - .hcl for HCL
// - .docpatch will try both YAML and HCL formats
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var cfg *Config

	switch {
	case ext == ".docpatch" || filepath.Base(path) == ".docpatch":
		// Try YAML first
		cfg, err = loadYAML(data)
		if err != nil {
			// Try HCL next
			cfg, err = loadHCL(data, path)
			if err != nil {
				return nil, errors.Errorf("failed to parse %s as YAML or HCL: %w", path, err)
			}
		}
	case ext == ".json":
		cfg, err = loadJSON(data)
	case ext == ".yaml" || ext == ".yml":
		cfg, err = loadYAML(data)
	case ext == ".hcl":
		cfg, err = loadHCL(data, path)
	default:
		return nil, errors.Errorf("unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	cfg.location = path
	if err := Validate(cfg); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadJSON loads a configuration from JSON data
func loadJSON(data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

// loadYAML loads a configuration from YAML data
func loadYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// hclConfig is the HCL schema, converted to Config after decoding
type hclConfig struct {
	Store *struct {
		Type   string `hcl:"type"`
		Path   string `hcl:"path,optional"`
		GitHub *struct {
			Repo     string `hcl:"repo"`
			Ref      string `hcl:"ref,optional"`
			Path     string `hcl:"path,optional"`
			TokenEnv string `hcl:"token_env,optional"`
		} `hcl:"github,block"`
	} `hcl:"store,block"`
	Locator *struct {
		MaxGap         int `hcl:"max_gap,optional"`
		MinTokenLength int `hcl:"min_token_length,optional"`
		MinTokens      int `hcl:"min_tokens,optional"`
	} `hcl:"locator,block"`
	Documents *struct {
		Prefix  string   `hcl:"prefix,optional"`
		Allowed []string `hcl:"allowed,optional"`
	} `hcl:"documents,block"`
	Session *struct {
		FixListKey   string   `hcl:"fix_list_key,optional"`
		AnalysisKeys []string `hcl:"analysis_keys,optional"`
	} `hcl:"session,block"`
	CDN *struct {
		Type          string `hcl:"type,optional"`
		NATSURL       string `hcl:"nats_url,optional"`
		Subject       string `hcl:"subject,optional"`
		ChangelogPath string `hcl:"changelog_path,optional"`
	} `hcl:"cdn,block"`
	Server *struct {
		Host string `hcl:"host,optional"`
		Port int    `hcl:"port,optional"`
	} `hcl:"server,block"`
	ConditionalWrites *bool `hcl:"conditional_writes,optional"`
}

// loadHCL loads a configuration from HCL data
func loadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	var hc hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hc)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{ConditionalWrites: hc.ConditionalWrites}
	if hc.Store != nil {
		cfg.Store = Store{Type: hc.Store.Type, Path: hc.Store.Path}
		if gh := hc.Store.GitHub; gh != nil {
			cfg.Store.GitHub = &GitHubStore{Repo: gh.Repo, Ref: gh.Ref, Path: gh.Path, TokenEnv: gh.TokenEnv}
		}
	}
	if hc.Locator != nil {
		cfg.Locator = Locator{MaxGap: hc.Locator.MaxGap, MinTokenLength: hc.Locator.MinTokenLength, MinTokens: hc.Locator.MinTokens}
	}
	if hc.Documents != nil {
		cfg.Documents = Documents{Prefix: hc.Documents.Prefix, Allowed: hc.Documents.Allowed}
	}
	if hc.Session != nil {
		cfg.Session = Session{FixListKey: hc.Session.FixListKey, AnalysisKeys: hc.Session.AnalysisKeys}
	}
	if hc.CDN != nil {
		cfg.CDN = CDN{Type: hc.CDN.Type, NATSURL: hc.CDN.NATSURL, Subject: hc.CDN.Subject, ChangelogPath: hc.CDN.ChangelogPath}
	}
	if hc.Server != nil {
		cfg.Server = Server{Host: hc.Server.Host, Port: hc.Server.Port}
	}

	return cfg, nil
}

// envObject exposes the process environment to HCL as env.NAME
func envObject() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !utf8.ValidString(v) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
