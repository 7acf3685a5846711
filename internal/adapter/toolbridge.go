package adapter

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveToolBridge locates the tool-bridge helper binary the adapter
// passes to the agent CLI as its MCP server command, grounded on the
// teacher's AgentctlResolver: an explicit configured path wins, otherwise
// a small set of sibling-directory probes relative to the running binary.
func ResolveToolBridge(configuredPath string) (string, error) {
	if configuredPath != "" {
		if _, err := os.Stat(configuredPath); err == nil {
			return configuredPath, nil
		}
		return "", fmt.Errorf("adapter: configured tool-bridge path %q does not exist", configuredPath)
	}

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("adapter: tool-bridge not configured and running binary path unavailable: %w", err)
	}
	exeDir := filepath.Dir(exePath)
	candidates := []string{
		filepath.Join(exeDir, "toolbridge"),
		filepath.Join(exeDir, "..", "build", "toolbridge"),
		filepath.Join(exeDir, "..", "bin", "toolbridge"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			abs, _ := filepath.Abs(candidate)
			return abs, nil
		}
	}
	return "", fmt.Errorf("adapter: tool-bridge binary not found near %s; set adapter.tool_bridge_path", exeDir)
}
