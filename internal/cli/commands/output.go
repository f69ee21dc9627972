package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"twin/internal/errors"
	"twin/internal/types"
)

// Output formats accepted by --format
const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatSimple = "simple"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return errors.InvalidInput(format, fmt.Sprintf("one of %v", allowed))
}

// writeStructured renders v as JSON or YAML
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.InvalidInput(format, "json or yaml")
	}
}

func printEnvironments(w io.Writer, format string, envs []*types.Environment) error {
	switch format {
	case FormatJSON, FormatYAML:
		if envs == nil {
			envs = []*types.Environment{}
		}
		return writeStructured(w, format, envs)
	case FormatSimple:
		for _, env := range envs {
			fmt.Fprintln(w, env.Name)
		}
		return nil
	}

	if len(envs) == 0 {
		fmt.Fprintln(w, "No environments. Create one with 'twin create <name>'.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tSTATUS\tBRANCH\tLINKS\tPATH")
	for _, env := range envs {
		marker := ""
		if env.Status == types.StatusActive {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			env.Name,
			env.Status,
			env.Branch,
			linkSummary(env),
			env.WorktreePath,
		)
	}
	return tw.Flush()
}

func linkSummary(env *types.Environment) string {
	invalid := len(env.InvalidLinks())
	if invalid == 0 {
		return fmt.Sprintf("%d", len(env.Links))
	}
	return fmt.Sprintf("%d (%d invalid)", len(env.Links), invalid)
}

func printEnvironment(w io.Writer, env *types.Environment) {
	fmt.Fprintf(w, "Environment: %s\n", env.Name)
	fmt.Fprintf(w, "Status:      %s\n", env.Status)
	if env.StatusReason != "" {
		fmt.Fprintf(w, "Reason:      %s\n", env.StatusReason)
	}
	fmt.Fprintf(w, "Branch:      %s\n", env.Branch)
	fmt.Fprintf(w, "Path:        %s\n", env.WorktreePath)
	if env.ConfigPath != "" {
		fmt.Fprintf(w, "Config:      %s\n", env.ConfigPath)
	}
	fmt.Fprintf(w, "Created:     %s\n", env.CreatedAt.Local().Format(time.DateTime))

	if len(env.Links) == 0 {
		return
	}
	fmt.Fprintln(w, "Links:")
	for _, l := range env.Links {
		state := "ok"
		if !l.Valid {
			state = l.ErrorMessage
			if state == "" {
				state = "invalid"
			}
		}
		fmt.Fprintf(w, "  %s -> %s [%s, %s]\n", l.Target, l.Source, l.Kind, state)
	}
}
