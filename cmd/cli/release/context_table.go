package release

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jarrodldavis/npm-version-scripts/internal/releases"
)

func renderContext(output io.Writer, releaseContext releases.Context) {
	tableWriter := table.NewWriter()
	tableWriter.SetOutputMirror(output)
	tableWriter.AppendHeader(table.Row{"Field", "Value"})
	tableWriter.AppendRows([]table.Row{
		{"Package version", releaseContext.PackageVersion},
		{"Release version", releaseContext.ReleaseVersion},
		{"Release branch", releaseContext.ReleaseBranch},
		{"Default branch", releaseContext.DefaultBranch},
		{"Production branch", releaseContext.ProductionBranch},
		{"Milestone", releaseContext.Milestone},
		{"Pull request title", releaseContext.PullRequestTitle},
		{"Remote", releaseContext.RemoteName},
	})
	tableWriter.Render()
}
