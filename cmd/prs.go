package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"github.com/naka-gawa/pr-dashboard/internal/usecase"
	"github.com/naka-gawa/pr-dashboard/internal/view"
	"github.com/spf13/cobra"
)

type prsOutput struct {
	Viewer       string                 `json:"viewer"`
	PullRequests []domain.PullRequest   `json:"pull_requests,omitempty"`
	Groups       []view.RepositoryGroup `json:"groups,omitempty"`
	Summary      *view.Summary          `json:"summary,omitempty"`
	Failures     []domain.RepoFailure   `json:"failures"`
}

var prsCmd = &cobra.Command{
	Use:   "prs",
	Short: "Aggregates open pull requests and outputs them as JSON",
	Long:  `Runs one aggregation cycle over the given repositories (or the configured selection), applies the filters and prints the result in JSON format.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := mustOneShot(cmd)

		repos, _ := cmd.Flags().GetStringSlice("repo")
		if !cmd.Flags().Changed("repo") {
			repos = c.cfg.Dashboard.SelectedRepos
		}
		drafts, _ := cmd.Flags().GetString("drafts")
		review, _ := cmd.Flags().GetString("review")
		ci, _ := cmd.Flags().GetString("ci")
		group, _ := cmd.Flags().GetBool("group")
		summary, _ := cmd.Flags().GetBool("summary")

		filter, err := view.ParseFilter(drafts, review, ci)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid filter: %v\n", err)
			os.Exit(1)
		}
		refs, _, err := domain.CanonicalSelection(repos)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid repository: %v\n", err)
			os.Exit(1)
		}
		if len(refs) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no repositories selected. Use --repo owner/name.")
			os.Exit(1)
		}
		query, err := gateway.BuildAggregationQuery(refs, c.cfg.GitHub.BatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build query: %v\n", err)
			os.Exit(1)
		}

		aggregator := usecase.NewAggregator(c.github, c.log)
		result, err := aggregator.Aggregate(cmd.Context(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to aggregate pull requests: %v\n", err)
			os.Exit(1)
		}

		prs := filter.Apply(result.PullRequests)
		out := prsOutput{Viewer: result.Viewer, Failures: result.Failures}
		if group {
			out.Groups = view.GroupByRepository(prs)
		} else {
			out.PullRequests = prs
		}
		if summary {
			s := view.Summarize(prs, time.Now())
			out.Summary = &s
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal results to JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(prsCmd)
	prsCmd.Flags().StringSliceP("repo", "r", nil, "Repository to aggregate as owner/name (repeatable)")
	prsCmd.Flags().String("drafts", "true", "Include draft pull requests")
	prsCmd.Flags().String("review", "all", "Review status filter: all, approved, changes_requested, pending")
	prsCmd.Flags().String("ci", "all", "CI status filter: all, passing, failing, pending")
	prsCmd.Flags().Bool("group", false, "Group pull requests by repository")
	prsCmd.Flags().Bool("summary", false, "Include summary statistics")
}
