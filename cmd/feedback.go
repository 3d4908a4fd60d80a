package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/spf13/cobra"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <image-id>",
	Short: "Refine a ranking with relevance feedback",
	Long: `Rank the corpus against a query image, then re-rank it with feature
weights derived from the images marked as relevant.

Features on which the relevant images agree (small spread) receive large
weights. Each round adds its images to the relevant set of the previous
rounds, like ticking more checkboxes in the web interface.

Examples:
  # One feedback round
  cbir feedback 12 --relevant 3,7,15

  # Several rounds, one comma separated line of image ids per round
  cbir feedback 12 --rounds-file rounds.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().IntSlice("relevant", nil, "Relevant image ids (comma separated)")
	feedbackCmd.Flags().String("rounds-file", "", "File with one line of relevant image ids per feedback round")
	feedbackCmd.Flags().String("method", string(retrieval.MethodFeedback), "Retrieval method (must support feedback)")
	feedbackCmd.Flags().Int("limit", 20, "Maximum number of results (0 = all)")
	feedbackCmd.Flags().Int("top-weights", 5, "Number of highest weighted features to print")
	feedbackCmd.Flags().Bool("json", false, "Output as JSON")
}

// FeatureWeight is the weight of one feature column
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// FeedbackRound represents one round of the feedback command output
type FeedbackRound struct {
	Round      int                `json:"round"`
	Relevant   []int              `json:"relevant"`
	TopWeights []FeatureWeight    `json:"top_weights"`
	Results    []retrieval.Result `json:"results"`
}

// FeedbackOutput represents the JSON output of the feedback command
type FeedbackOutput struct {
	QueryID int              `json:"query_id"`
	Method  retrieval.Method `json:"method"`
	Rounds  []FeedbackRound  `json:"rounds"`
}

// readRounds reads one round of relevant ids per non-empty line. Lines
// starting with # are ignored.
func readRounds(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rounds file: %w", err)
	}
	defer f.Close()

	var rounds [][]int
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ids, err := parseIDList(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		rounds = append(rounds, ids)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rounds file: %w", err)
	}
	return rounds, nil
}

// topWeights returns the n features with the largest weights.
func topWeights(w retrieval.Weights, columns []string, n int) ([]FeatureWeight, error) {
	values, err := w.Values(len(columns))
	if err != nil {
		return nil, err
	}
	out := make([]FeatureWeight, len(values))
	for i, v := range values {
		out[i] = FeatureWeight{Feature: columns[i], Weight: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	queryID, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	method := retrieval.Method(mustGetString(cmd, "method"))
	limit := mustGetInt(cmd, "limit")
	nWeights := mustGetInt(cmd, "top-weights")
	jsonOutput := mustGetBool(cmd, "json")

	var rounds [][]int
	if path := mustGetString(cmd, "rounds-file"); path != "" {
		if rounds, err = readRounds(path); err != nil {
			return err
		}
	}
	if relevant := mustGetIntSlice(cmd, "relevant"); len(relevant) > 0 {
		rounds = append([][]int{relevant}, rounds...)
	}
	if len(rounds) == 0 {
		return errors.New("no relevant images given, use --relevant or --rounds-file")
	}

	cfg := config.Load()
	release, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer release()

	engine, err := loadEngine(context.Background(), cfg)
	if err != nil {
		return err
	}
	space, err := engine.Space(method)
	if err != nil {
		return err
	}

	session := retrieval.NewSession()
	session.SelectQuery(queryID)
	session.SelectMethod(method)
	if err := session.Run(engine); err != nil {
		return err
	}

	output := FeedbackOutput{QueryID: queryID, Method: method}
	for _, ids := range rounds {
		if err := session.SubmitFeedback(engine, ids...); err != nil {
			return fmt.Errorf("round %d: %w", session.Round()+1, err)
		}
		top, err := topWeights(session.Weights(), space.Columns(), nWeights)
		if err != nil {
			return err
		}
		results := session.Results()
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		output.Rounds = append(output.Rounds, FeedbackRound{
			Round:      session.Round(),
			Relevant:   session.Relevant(),
			TopWeights: top,
			Results:    results,
		})
	}

	if jsonOutput {
		return outputJSON(output)
	}

	for _, round := range output.Rounds {
		fmt.Printf("\nRound %d: query image %d, %d relevant images %v\n", round.Round, queryID, len(round.Relevant), round.Relevant)
		fmt.Println("Top weighted features:")
		for _, fw := range round.TopWeights {
			fmt.Printf("  %-16s %.4f\n", fw.Feature, fw.Weight)
		}
		fmt.Println()

		relevant := make(map[int]bool, len(round.Relevant))
		for _, id := range round.Relevant {
			relevant[id] = true
		}
		printResults(round.Results, relevant)
	}
	return nil
}
