package cmd

import (
	"github.com/spf13/cobra"

	"github.com/masahif/falconeye/internal/extract"
	"github.com/masahif/falconeye/internal/scraper"
)

var attrCmd = &cobra.Command{
	Use:   "attr <source> <tag> <attribute>",
	Short: "Print an attribute of every element with the given tag",
	Example: `  falconeye attr https://example.com a href
  falconeye attr page.html img alt -o alts.json -f json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRule(cmd, args[0], scraper.Rule{
			Kind: scraper.RuleAttribute,
			Tag:  args[1],
			Attr: args[2],
		})
	},
}

var textCmd = &cobra.Command{
	Use:   "text <source>",
	Short: "Print element text selected by tag, class or id",
	Example: `  falconeye text page.html --tag h1
  falconeye text page.html --class headline
  falconeye text - --id title < page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

var linksCmd = &cobra.Command{
	Use:   "links <source>",
	Short: "Print the href of every anchor, or of the anchor with --id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule := scraper.Rule{Kind: scraper.RuleLinks}
		if id, _ := cmd.Flags().GetString("id"); id != "" {
			rule = scraper.Rule{Kind: scraper.RuleLinkByID, ID: id}
		}
		return runRule(cmd, args[0], rule)
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images <source>",
	Short: "Print unique image URLs, optionally downloading them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("download-dir")
		return runRule(cmd, args[0], scraper.Rule{Kind: scraper.RuleImages, DownloadDir: dir})
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos <source>",
	Short: "Print unique video URLs, optionally downloading them",
	Long: `Print unique video URLs found in video and source elements, and in
iframes whose src contains one of the configured providers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("download-dir")
		return runRule(cmd, args[0], scraper.Rule{Kind: scraper.RuleVideos, DownloadDir: dir})
	},
}

func init() {
	textCmd.Flags().String("tag", "", "Select elements by tag name")
	textCmd.Flags().String("class", "", "Select elements by class")
	textCmd.Flags().String("id", "", "Select the element with this id")
	textCmd.MarkFlagsOneRequired("tag", "class", "id")
	textCmd.MarkFlagsMutuallyExclusive("tag", "class", "id")

	linksCmd.Flags().String("id", "", "Print only the href of the anchor with this id")

	imagesCmd.Flags().StringP("download-dir", "D", "", "Download images into this directory")

	videosCmd.Flags().StringP("download-dir", "D", "", "Download videos into this directory")
	videosCmd.Flags().StringSlice("provider", append([]string(nil), extract.DefaultVideoProviders...),
		"Iframe src markers treated as video providers")
}

func runText(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var rule scraper.Rule

	switch {
	case flags.Changed("tag"):
		tag, _ := flags.GetString("tag")
		rule = scraper.Rule{Kind: scraper.RuleTextByTag, Tag: tag}
	case flags.Changed("class"):
		class, _ := flags.GetString("class")
		rule = scraper.Rule{Kind: scraper.RuleTextByClass, Class: class}
	default:
		id, _ := flags.GetString("id")
		rule = scraper.Rule{Kind: scraper.RuleTextByID, ID: id}
	}

	return runRule(cmd, args[0], rule)
}
