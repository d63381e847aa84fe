package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Lists the repositories you can aggregate as JSON",
	Long:  `Lists your own repositories and those of your organizations, deduplicated, in JSON format. With --account, prints the signed-in account and its rate limits instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := mustOneShot(cmd)
		account, _ := cmd.Flags().GetBool("account")

		var (
			out any
			err error
		)
		if account {
			out, err = c.github.FetchAccount(cmd.Context())
		} else {
			out, err = c.github.FetchRepositories(cmd.Context())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch from GitHub: %v\n", err)
			os.Exit(1)
		}

		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal results to JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.Flags().Bool("account", false, "Print the signed-in account instead of the repositories")
}
