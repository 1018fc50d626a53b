package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/meta"
)

// NewArtifactsCommand creates the artifacts command.
func NewArtifactsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List every artifact in the account",
		Example: `  # List all artifacts grouped by kind
  sageworks artifacts

  # As JSON for scripting
  sageworks artifacts --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := meta.New(cc.Platform).All()
			if err != nil {
				return err
			}
			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(all)
			}

			for _, kind := range []artifact.Kind{
				artifact.KindDataSource,
				artifact.KindFeatureSet,
				artifact.KindModel,
				artifact.KindEndpoint,
			} {
				summaries := all[kind]
				r.Header(2, fmt.Sprintf("%s (%d)", kindTitle(kind), len(summaries)))
				renderSummaries(r, summaries)
				r.Println()
			}
			return nil
		},
	}
}

func kindTitle(kind artifact.Kind) string {
	switch kind {
	case artifact.KindDataSource:
		return "Data Sources"
	case artifact.KindFeatureSet:
		return "Feature Sets"
	case artifact.KindModel:
		return "Models"
	case artifact.KindEndpoint:
		return "Endpoints"
	default:
		return string(kind)
	}
}

// renderSummaries prints artifact summaries as a table.
func renderSummaries(r *output.Renderer, summaries []artifact.Summary) {
	if len(summaries) == 0 {
		r.Muted("(none)")
		return
	}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		health := "healthy"
		if len(s.HealthTags) > 0 {
			health = strings.Join(s.HealthTags, " ")
		}
		rows = append(rows, []string{
			s.Name, s.Input, s.Status, health, strings.Join(s.Tags, " "),
			fmt.Sprintf("%d", s.SizeBytes), s.Modified,
		})
	}
	r.Table([]string{"Name", "Input", "Status", "Health", "Tags", "Bytes", "Modified"}, rows)
}
