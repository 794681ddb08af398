package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/tools"
)

type toolInfo struct {
	Name        string      `json:"name" yaml:"name"`
	Domain      string      `json:"domain" yaml:"domain"`
	Description string      `json:"description" yaml:"description"`
	Params      []paramInfo `json:"params,omitempty" yaml:"params,omitempty"`
}

type paramInfo struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

func newToolsCmd(root *rootOptions) *cobra.Command {
	var (
		role   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a role may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := core.ParseRole(role)
			if !ok {
				return usageError(fmt.Sprintf("unknown role %q", role), "use admin, teacher or student")
			}
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeTools(cmd.OutOrStdout(), describe(a.caps.Resolve(r)), format)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "admin, teacher or student")
	cmd.Flags().StringVar(&format, "format", "table", "table, yaml or json")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func describe(descs []*tools.Descriptor) []toolInfo {
	out := make([]toolInfo, 0, len(descs))
	for _, d := range descs {
		info := toolInfo{Name: d.Name, Domain: d.Domain, Description: d.Description}
		for _, p := range d.Params {
			info.Params = append(info.Params, paramInfo{Name: p.Name, Type: string(p.Type), Required: p.Required})
		}
		out = append(out, info)
	}
	return out
}

func writeTools(w io.Writer, infos []toolInfo, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDOMAIN\tPARAMS")
		for _, t := range infos {
			names := make([]string, len(t.Params))
			for i, p := range t.Params {
				names[i] = p.Name
				if p.Required {
					names[i] += "*"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Domain, strings.Join(names, ","))
		}
		return tw.Flush()
	default:
		return usageError(fmt.Sprintf("unknown format %q", format), "use table, yaml or json")
	}
}
