package budget

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
)

const truncationMarker = "...[truncated]"

type Config struct {
	// MaxTextLen is the threshold above which a textual payload is
	// summarized or head-truncated before entering the conversation.
	MaxTextLen int
	// MaxListSamples caps how many array elements stay inlined in a
	// JSON payload.
	MaxListSamples int
}

func DefaultConfig() Config {
	return Config{
		MaxTextLen:     2000,
		MaxListSamples: 2,
	}
}

// Manager keeps tool results within the conversation size budget. Full
// page content is cached out-of-band before truncation so later steps
// can reach the uncompressed artifact.
type Manager struct {
	cache  *ArtifactCache
	logger output.LoggerPort
	cfg    Config

	encOnce sync.Once
	encoder *tiktoken.Tiktoken
}

func NewManager(cache *ArtifactCache, logger output.LoggerPort, cfg Config) *Manager {
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = DefaultConfig().MaxTextLen
	}
	if cfg.MaxListSamples <= 0 {
		cfg.MaxListSamples = DefaultConfig().MaxListSamples
	}
	return &Manager{
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

func (m *Manager) Cache() *ArtifactCache {
	return m.cache
}

// Admit bounds one tool result for inclusion in conversation state.
// Idempotent: an already-bounded result passes through untouched.
func (m *Manager) Admit(toolName entity.ToolName, res entity.ToolResult) entity.ToolResult {
	if res.Bounded {
		return res
	}

	out := res
	payload := res.Payload

	switch {
	case res.Status == entity.ResultOK && toolName == entity.ToolGetHTML:
		// Cache the full document first, whatever its size.
		m.cache.Store(KindPageHTML, payload)
		if len(payload) > m.cfg.MaxTextLen {
			if summary, ok := summarizeHTML(payload); ok {
				out.Payload = summary
			} else {
				out.Payload = headTruncate(payload, m.cfg.MaxTextLen)
			}
		}

	case looksLikeJSONObject(payload):
		out.Payload = m.boundJSONPayload(payload)

	case len(payload) > m.cfg.MaxTextLen:
		out.Payload = headTruncate(payload, m.cfg.MaxTextLen)
	}

	out.Bounded = true

	m.logger.Debug("Tool result admitted",
		"tool", toolName.String(),
		"rawLen", len(payload),
		"boundedLen", len(out.Payload),
		"tokenEstimate", m.estimateTokens(out.Payload),
	)
	return out
}

// boundJSONPayload caps arrays inside a JSON object payload: the first
// MaxListSamples elements stay, a marker entry and the true count are
// appended. Non-array oversize string members are truncated too.
func (m *Manager) boundJSONPayload(payload string) string {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		if len(payload) > m.cfg.MaxTextLen {
			return headTruncate(payload, m.cfg.MaxTextLen)
		}
		return payload
	}

	changed := false
	for key, value := range obj {
		switch v := value.(type) {
		case []interface{}:
			if len(v) > m.cfg.MaxListSamples {
				capped := append([]interface{}{}, v[:m.cfg.MaxListSamples]...)
				capped = append(capped, map[string]interface{}{"...": "truncated"})
				obj[key] = capped
				if _, has := obj["count"]; !has {
					obj["count"] = len(v)
				}
				changed = true
			}
		case string:
			if len(v) > m.cfg.MaxTextLen {
				obj[key] = headTruncate(v, m.cfg.MaxTextLen)
				changed = true
			}
		}
	}

	if !changed && len(payload) <= m.cfg.MaxTextLen {
		return payload
	}

	bounded, err := json.Marshal(obj)
	if err != nil {
		return headTruncate(payload, m.cfg.MaxTextLen)
	}
	return string(bounded)
}

// estimateTokens is for logging only. The tiktoken encoder may need its
// vocabulary fetched; when unavailable the len/4 heuristic serves.
func (m *Manager) estimateTokens(s string) int {
	m.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			m.logger.Debug("Token encoder unavailable, using heuristic", "error", err)
			return
		}
		m.encoder = enc
	})

	if m.encoder == nil {
		return len(s) / 4
	}
	return len(m.encoder.Encode(s, nil, nil))
}

func headTruncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationMarker
}

func looksLikeJSONObject(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}
