package git

import "strings"

// WorktreeInfo describes one entry of `git worktree list --porcelain`.
// It is rebuilt on every query and never persisted.
type WorktreeInfo struct {
	Path      string `json:"path" yaml:"path"`
	Branch    string `json:"branch" yaml:"branch"`
	Commit    string `json:"commit" yaml:"commit"`
	AgentName string `json:"agent_name,omitempty" yaml:"agent_name,omitempty"`
	Locked    bool   `json:"locked" yaml:"locked"`
	Prunable  bool   `json:"prunable" yaml:"prunable"`
	Bare      bool   `json:"bare,omitempty" yaml:"bare,omitempty"`
	Detached  bool   `json:"detached,omitempty" yaml:"detached,omitempty"`
}

// ParseWorktreeList parses the output of git worktree list --porcelain.
// Every record starts with a "worktree <path>" line; a missing branch line
// leaves Branch empty. Unknown lines are ignored so newer git output still
// parses.
func ParseWorktreeList(output, branchPrefix string) []WorktreeInfo {
	var worktrees []WorktreeInfo
	var current *WorktreeInfo

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			flush()
			current = &WorktreeInfo{Path: value}
			continue
		}
		if current == nil {
			continue
		}

		switch key {
		case "HEAD":
			current.Commit = value
		case "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
			current.AgentName = agentName(current.Branch, branchPrefix)
		case "detached":
			current.Detached = true
		case "bare":
			current.Bare = true
		case "locked":
			current.Locked = true
		case "prunable":
			current.Prunable = true
		}
	}
	flush()

	return worktrees
}

func agentName(branch, prefix string) string {
	if prefix == "" {
		return ""
	}
	if name, ok := strings.CutPrefix(branch, prefix+"/"); ok {
		return name
	}
	return ""
}
