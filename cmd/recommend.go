package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aruomeng/JobRec-KG/internal/app"
	"github.com/Aruomeng/JobRec-KG/internal/config"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend jobs for one candidate",
	Long:  "Runs the recall, rank and fusion funnel for one candidate and prints the response as JSON.",
	RunE:  runRecommend,
}

var (
	recCandidate string
	recRecallK   int
	recRankK     int
	recFinalK    int
	recCity      string
	recSkills    string
	recPolicy    string
	recWeights   string
	recTimeout   time.Duration
)

func init() {
	recommendCmd.Flags().StringVar(&recCandidate, "candidate", "", "Candidate (student) id (required)")
	recommendCmd.Flags().IntVar(&recRecallK, "recall-k", 0, "Items recalled (defaults to config recall_k)")
	recommendCmd.Flags().IntVar(&recRankK, "rank-k", 0, "Items fused (defaults to config rank_k)")
	recommendCmd.Flags().IntVar(&recFinalK, "final-k", 0, "Items returned (defaults to config final_k)")
	recommendCmd.Flags().StringVar(&recCity, "city", "", "Only recommend jobs located in this city")
	recommendCmd.Flags().StringVar(&recSkills, "skills", "", "Comma separated skills used when the candidate has no embedding")
	recommendCmd.Flags().StringVar(&recPolicy, "policy", "skill_weighted", "Fusion policy: skill_weighted or attribute_boost")
	recommendCmd.Flags().StringVar(&recWeights, "weights", "", "Fusion weights as deep,skill,rule")
	recommendCmd.Flags().DurationVar(&recTimeout, "timeout", 5*time.Second, "Deadline for the whole request")

	if err := recommendCmd.MarkFlagRequired("candidate"); err != nil {
		panic(fmt.Sprintf("failed to mark candidate flag as required: %v", err))
	}

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	req, err := recommendRequest(cmd, rt.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, recTimeout)
	defer cancel()
	resp, err := rt.svc.Recommend(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// recommendRequest builds the request from the flags. A k flag given on the
// command line is passed through as is, negative or not, and left to request
// validation; an absent one takes the configured value.
func recommendRequest(cmd *cobra.Command, cfg *config.Config) (app.Request, error) {
	weights, err := parseWeights(recWeights)
	if err != nil {
		return app.Request{}, err
	}
	req := app.Request{
		CandidateID:  recCandidate,
		RecallK:      cfg.RecallK,
		RankK:        cfg.RankK,
		FinalK:       cfg.FinalK,
		Weights:      weights,
		Location:     recCity,
		FeatureHints: splitList(recSkills),
		Policy:       recPolicy,
	}
	flags := cmd.Flags()
	if flags.Changed("recall-k") {
		req.RecallK = recRecallK
	}
	if flags.Changed("rank-k") {
		req.RankK = recRankK
	}
	if flags.Changed("final-k") {
		req.FinalK = recFinalK
	}
	return req, nil
}
