package postgres

import (
	"encoding/json"

	"github.com/openclaw/openclaw/internal/domain"
)

// The JSON shapes below back the JSONB columns for config/metadata. They
// exist so the recognised subkeys (§9) round-trip as explicit fields while
// anything else lands in Extra.

type agentConfigJSON struct {
	Adapter           string         `json:"adapter,omitempty"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"`
	MaxOutputPerTurn  int            `json:"max_output_per_turn,omitempty"`
	DailyCostLimitUSD *float64       `json:"daily_cost_limit_usd,omitempty"`
	TaskCostLimitUSD  *float64       `json:"task_cost_limit_usd,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

func marshalAgentConfig(c domain.AgentConfig) ([]byte, error) {
	return json.Marshal(agentConfigJSON{
		Adapter: c.Adapter, TimeoutSeconds: c.TimeoutSeconds, MaxOutputPerTurn: c.MaxOutputPerTurn,
		DailyCostLimitUSD: c.DailyCostLimitUSD, TaskCostLimitUSD: c.TaskCostLimitUSD, Extra: c.Extra,
	})
}

func unmarshalAgentConfig(data []byte) (domain.AgentConfig, error) {
	var j agentConfigJSON
	if len(data) > 0 {
		if err := json.Unmarshal(data, &j); err != nil {
			return domain.AgentConfig{}, err
		}
	}
	return domain.AgentConfig{
		Adapter: j.Adapter, TimeoutSeconds: j.TimeoutSeconds, MaxOutputPerTurn: j.MaxOutputPerTurn,
		DailyCostLimitUSD: j.DailyCostLimitUSD, TaskCostLimitUSD: j.TaskCostLimitUSD, Extra: j.Extra,
	}, nil
}

type teamConfigJSON struct {
	Conventions []domain.Convention `json:"conventions,omitempty"`
	Caps        domain.TeamCaps     `json:"caps,omitempty"`
	Extra       map[string]any      `json:"extra,omitempty"`
}

func marshalTeamConfig(c domain.TeamConfig) ([]byte, error) {
	return json.Marshal(teamConfigJSON{Conventions: c.Conventions, Caps: c.Caps, Extra: c.Extra})
}

func unmarshalTeamConfig(data []byte) (domain.TeamConfig, error) {
	var j teamConfigJSON
	if len(data) > 0 {
		if err := json.Unmarshal(data, &j); err != nil {
			return domain.TeamConfig{}, err
		}
	}
	return domain.TeamConfig{Conventions: j.Conventions, Caps: j.Caps, Extra: j.Extra}, nil
}

type taskMetadataJSON struct {
	Context  map[string]string `json:"context,omitempty"`
	PRURL    string            `json:"pr_url,omitempty"`
	PRNumber int               `json:"pr_number,omitempty"`
	Extra    map[string]any    `json:"extra,omitempty"`
}

func marshalTaskMetadata(m domain.TaskMetadata) ([]byte, error) {
	return json.Marshal(taskMetadataJSON{Context: m.Context, PRURL: m.PRURL, PRNumber: m.PRNumber, Extra: m.Extra})
}

func unmarshalTaskMetadata(data []byte) (domain.TaskMetadata, error) {
	var j taskMetadataJSON
	if len(data) > 0 {
		if err := json.Unmarshal(data, &j); err != nil {
			return domain.TaskMetadata{}, err
		}
	}
	if j.Context == nil {
		j.Context = map[string]string{}
	}
	return domain.TaskMetadata{Context: j.Context, PRURL: j.PRURL, PRNumber: j.PRNumber, Extra: j.Extra}, nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

func unmarshalMap(data []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
