package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/barysiuk/clipbridge/internal/core"
	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// probeRow is one distribution as reported by `clipbridge probe`.
type probeRow struct {
	Name  string
	Arch  core.Arch
	Valid bool
	Error string
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "List WSL distributions and their architectures",
	Long: `List the WSL distributions the installer can see, with the CPU
architecture of each. Nothing is changed.

Distributions whose names fall outside letters, digits, '_' and '-' are
listed but cannot be installed into.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		prober := core.NewProber(d.runner, d.log)

		env, err := prober.Probe(ctx)
		if err != nil {
			return err
		}

		rows := make([]probeRow, 0, len(env.Instances))
		for _, name := range env.Instances {
			row := probeRow{Name: name, Valid: guest.IsValidName(name)}
			if row.Valid {
				a, err := prober.GuestArch(ctx, name)
				if err != nil {
					row.Error = err.Error()
				} else {
					row.Arch = a
				}
			}
			rows = append(rows, row)
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := probeJSON(env.HostArch, rows)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Host architecture: %s\n\n", orDash(string(env.HostArch)))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DISTRIBUTION\tARCH\tNOTE")
		for _, r := range rows {
			note := ""
			switch {
			case !r.Valid:
				note = "unsupported name"
			case r.Error != "":
				note = r.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, orDash(string(r.Arch)), note)
		}
		return tw.Flush()
	},
}

// probeJSON builds the machine-readable probe report.
func probeJSON(host core.Arch, rows []probeRow) ([]byte, error) {
	doc, err := sjson.SetBytes([]byte(`{}`), "host_arch", string(host))
	if err != nil {
		return nil, fmt.Errorf("building probe report: %w", err)
	}
	doc, err = sjson.SetRawBytes(doc, "instances", []byte(`[]`))
	if err != nil {
		return nil, fmt.Errorf("building probe report: %w", err)
	}
	for _, r := range rows {
		entry := map[string]any{
			"name":  r.Name,
			"arch":  string(r.Arch),
			"valid": r.Valid,
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		if doc, err = sjson.SetBytes(doc, "instances.-1", entry); err != nil {
			return nil, fmt.Errorf("building probe report: %w", err)
		}
	}
	return doc, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	probeCmd.Flags().Bool("json", false, "Print the report as JSON")
	rootCmd.AddCommand(probeCmd)
}
