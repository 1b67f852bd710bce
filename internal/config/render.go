package config

import (
	tanglr "github.com/artyultra/tanglr-client"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Render writes s as an HCL document that [Load] reads back unchanged.
func Render(s Settings) []byte {
	cfg := s.Client
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	api := root.AppendNewBlock("api", nil).Body()
	api.SetAttributeValue("base_url", cty.StringVal(cfg.API.BaseURL))
	api.SetAttributeValue("version", cty.StringVal(cfg.API.Version))
	api.SetAttributeValue("timeout", cty.StringVal(cfg.API.Timeout.String()))
	api.SetAttributeValue("user_agent", cty.StringVal(cfg.API.UserAgent))
	root.AppendNewline()

	storage := root.AppendNewBlock("storage", nil).Body()
	storage.SetAttributeValue("backend", cty.StringVal(string(cfg.Storage.Backend)))
	switch cfg.Storage.Backend {
	case tanglr.StorageFile:
		storage.SetAttributeValue("file", cty.StringVal(cfg.Storage.FilePath))
	case tanglr.StorageRedis:
		storage.SetAttributeValue("redis_addr", cty.StringVal(s.RedisAddr))
		storage.SetAttributeValue("redis_prefix", cty.StringVal(cfg.Storage.RedisPrefix))
		storage.SetAttributeValue("redis_ttl", cty.StringVal(cfg.Storage.RedisTTL.String()))
	}
	root.AppendNewline()

	refresh := root.AppendNewBlock("refresh", nil).Body()
	refresh.SetAttributeValue("proactive", cty.BoolVal(cfg.Refresh.Proactive))
	refresh.SetAttributeValue("expiry_skew", cty.StringVal(cfg.Refresh.ExpirySkew.String()))
	refresh.SetAttributeValue("revoke_on_logout", cty.BoolVal(cfg.Refresh.RevokeOnLogout))
	root.AppendNewline()

	logging := root.AppendNewBlock("logging", nil).Body()
	logging.SetAttributeValue("level", cty.StringVal(cfg.Logging.Level))
	logging.SetAttributeValue("format", cty.StringVal(cfg.Logging.Format))

	return f.Bytes()
}
