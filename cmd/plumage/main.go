package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"plumage/internal/archive"
	"plumage/internal/classify"
	"plumage/internal/cmdlog"
	"plumage/internal/config"
	"plumage/internal/export"
	"plumage/internal/features"
	"plumage/internal/logging"
	"plumage/internal/metrics"
	"plumage/internal/mutuals"
	"plumage/internal/report"
	"plumage/internal/store"
	"plumage/internal/table"
)

func main() {
	metrics.StartServer("")
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run("init", cmdInit)
	case "features":
		err = cmdlog.Run("features", cmdFeatures)
	case "select-model":
		err = cmdlog.Run("select_model", cmdSelectModel)
	case "classify":
		err = cmdlog.Run("classify", cmdClassify)
	case "mutuals":
		err = cmdlog.Run("mutuals", cmdMutuals)
	case "report":
		err = cmdlog.Run("report", cmdReport)
	default:
		printHelp()
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: plumage <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init          Create a config file at ./plumage.yaml")
	fmt.Println("  features      Engineer features from an archive and export CSVs")
	fmt.Println("  select-model  Evaluate candidate models against the reference")
	fmt.Println("  classify      Classify a tweet sample with the selected model")
	fmt.Println("  mutuals       Extract mutual followers and enrich via CLI lookup")
	fmt.Println("  report        Print engagement buckets for the core sample")
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./plumage.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	fmt.Println("Config written to:", abs)
	return nil
}

// engineered loads an archive and runs the feature engine over it.
func engineered(cfg config.Config, archivePath string) (*table.Table, error) {
	fc, err := cfg.FeatureConfig()
	if err != nil {
		return nil, err
	}
	metrics.LoaderRuns.Inc()
	t, err := archive.Load(archivePath)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	metrics.EngineRuns.Inc()
	eng, err := features.Engineer(t, fc)
	if err != nil {
		return nil, err
	}
	metrics.ObserveEngineDuration(start)
	logging.Info("features_engineered", map[string]any{"rows": eng.Len()})
	return eng, nil
}

var featureColumns = []string{
	"id_str", "post_datetime", "is_retweet", "is_quote_tweet", "has_link",
	"has_media", "text_length_chars", "num_hashtags", "num_mentions",
	"has_question_mark", "reply_type", "weekday", "hour_of_day", "month",
	"account_tier", "likes", "retweets", "replies", "bookmarks",
	"total_engagement", "winsorized_engagement",
	"thread_id", "thread_step_index", "is_thread_starter",
}

func cmdFeatures() error {
	fs := flag.NewFlagSet("features", flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "./data/twitter_archive.json", "archive JSON path")
	outDir := fs.String("out", "./data", "output directory")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	eng, err := engineered(cfg, *archivePath)
	if err != nil {
		return err
	}
	core := features.CoreSample(eng)
	if err := export.WriteTableCSV(filepath.Join(*outDir, "tweet_features.csv"), eng, featureColumns); err != nil {
		return err
	}
	if err := export.WriteTableCSV(filepath.Join(*outDir, "core_sample.csv"), core, featureColumns); err != nil {
		return err
	}
	fmt.Printf("Engineered %d rows, core sample %d rows\n", eng.Len(), core.Len())
	return nil
}

func cmdSelectModel() error {
	fs := flag.NewFlagSet("select-model", flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "./data/twitter_archive.json", "archive JSON path")
	outDir := fs.String("out", "./data", "output directory")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	eng, err := engineered(cfg, *archivePath)
	if err != nil {
		return err
	}
	tweets, err := classify.TweetsFromTable(eng, cfg.Analysis.MinTextChars)
	if err != nil {
		return err
	}
	sample := classify.StratifiedSample(tweets, cfg.Analysis.EvalSampleSize, cfg.Analysis.Seed)
	fmt.Printf("Evaluating %d candidates on %d tweets against %s\n",
		len(cfg.LLM.Candidates), len(sample), cfg.LLM.Reference.Name)

	ctx := context.Background()
	ev, err := classify.EvaluateModels(ctx, classify.NewHTTPClient(), cfg.LLM, sample)
	if err != nil {
		return err
	}
	for _, s := range ev.Scores {
		fmt.Printf("%-25s %.1f%% agreement (±%.1f%%, n=%d)\n", s.Model, 100*s.Mean, 100*s.Std, s.N)
	}
	fmt.Println("Selected model:", ev.Best)

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	best := ev.Scores[0]
	if err := db.SaveSelection(ctx, best.Model, best.Mean, best.Std, best.N); err != nil {
		return err
	}

	records := make([][]string, 0, len(ev.Rows))
	for _, r := range ev.Rows {
		records = append(records, []string{
			r.TweetID, r.TweetText, fmt.Sprint(r.Engagement), r.Model,
			fmt.Sprintf("%.2f", r.Agreement), r.RefHumor, r.RefTopic, r.ModelHumor, r.ModelTopic,
		})
	}
	header := []string{"tweet_id", "tweet_text", "engagement", "model",
		"agreement_score", "ref_humor", "ref_topic", "model_humor", "model_topic"}
	if err := export.WriteRecordsCSV(filepath.Join(*outDir, "model_selection_results.csv"), header, records); err != nil {
		return err
	}
	summary := fmt.Sprintf("Selected Model: %s\nReference Agreement: %.1f%%\nSample Size: %d\n",
		best.Model, 100*best.Mean, best.N)
	return export.WriteText(filepath.Join(*outDir, "selected_model.txt"), summary)
}

func cmdClassify() error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "./data/twitter_archive.json", "archive JSON path")
	outDir := fs.String("out", "./data", "output directory")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	selected, err := db.LoadSelection(ctx)
	if err != nil {
		return err
	}
	spec, err := findModel(cfg, selected)
	if err != nil {
		return err
	}

	eng, err := engineered(cfg, *archivePath)
	if err != nil {
		return err
	}
	tweets, err := classify.TweetsFromTable(eng, cfg.Analysis.MinTextChars)
	if err != nil {
		return err
	}
	sample := classify.StratifiedSample(tweets, cfg.Analysis.SampleSize, cfg.Analysis.Seed)
	fmt.Printf("Classifying %d tweets with %s\n", len(sample), spec.Name)

	classified := classify.ClassifyAll(ctx, classify.NewHTTPClient(), spec, sample, cfg.LLM.MaxParallel)
	for _, c := range classified {
		if err := db.PutClassification(ctx, c.Tweet.ID, spec.Name, c.Classification); err != nil {
			return err
		}
	}

	records := make([][]string, 0, len(classified))
	for _, c := range classified {
		records = append(records, []string{
			c.Tweet.ID, c.Tweet.Text, fmt.Sprint(c.Tweet.WeightedEngagement),
			c.Classification.HumorType, c.Classification.TopicCategory,
			fmt.Sprint(c.Classification.HasDataReference),
			fmt.Sprint(c.Classification.ShowsVulnerability),
			c.Classification.CritiqueType,
		})
	}
	header := []string{"tweet_id", "tweet_text", "weighted_engagement",
		"humor_type", "topic_category", "has_data_reference", "shows_vulnerability", "critique_type"}
	if err := export.WriteRecordsCSV(filepath.Join(*outDir, "tweet_classifications.csv"), header, records); err != nil {
		return err
	}
	meta := map[string]any{
		"model_used":              spec.Name,
		"total_tweets_classified": len(classified),
		"date_classified":         time.Now().UTC().Format(time.RFC3339),
	}
	if err := export.WriteJSON(filepath.Join(*outDir, "classification_metadata.json"), meta); err != nil {
		return err
	}
	if err := db.SaveCursor(ctx, "last_classification_run", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	printClassificationSummary(classified)
	return nil
}

func findModel(cfg config.Config, name string) (config.ModelSpec, error) {
	if cfg.LLM.Reference.Name == name {
		return cfg.LLM.Reference, nil
	}
	for _, sp := range cfg.LLM.Candidates {
		if sp.Name == name {
			return sp, nil
		}
	}
	return config.ModelSpec{}, fmt.Errorf("selected model %q is not in the configured model list", name)
}

func printClassificationSummary(classified []classify.Classified) {
	humor := make(map[string]int)
	topic := make(map[string]int)
	humorEng := make(map[string]int)
	for _, c := range classified {
		humor[c.Classification.HumorType]++
		topic[c.Classification.TopicCategory]++
		humorEng[c.Classification.HumorType] += c.Tweet.WeightedEngagement
	}
	fmt.Println("Humor distribution:")
	for _, k := range sortedCountKeys(humor) {
		avg := float64(humorEng[k]) / float64(humor[k])
		fmt.Printf("  %-17s %d tweets, %.0f avg engagement\n", k, humor[k], avg)
	}
	fmt.Println("Topic distribution:")
	for _, k := range sortedCountKeys(topic) {
		fmt.Printf("  %-17s %d tweets\n", k, topic[k])
	}
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func cmdMutuals() error {
	fs := flag.NewFlagSet("mutuals", flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "./data/twitter_archive.json", "archive JSON path")
	outDir := fs.String("out", "./data", "output directory")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	ids, err := mutuals.ExtractMutualIDs(*archivePath)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(filepath.Join(*outDir, "mutual_ids.json"), ids); err != nil {
		return err
	}
	if err := export.WriteText(filepath.Join(*outDir, "mutual_ids.txt"), strings.Join(ids, ",")); err != nil {
		return err
	}
	fmt.Printf("Found %d mutual ids\n", len(ids))

	ctx := context.Background()
	runner := &mutuals.ExecRunner{Command: cfg.Enrich.Command, Args: cfg.Enrich.Args}
	dir := cfg.Enrich.Dir
	if dir == "" {
		dir = *outDir
	}
	files, err := mutuals.EnrichAll(ctx, runner, ids, cfg.Enrich.BatchSize, dir)
	if err != nil {
		return err
	}
	accounts, err := mutuals.Combine(files)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(filepath.Join(*outDir, "mutuals_account_info.json"), accounts); err != nil {
		return err
	}
	records := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, []string{
			a.ID, a.Username, a.Name, a.Location, a.Description,
			fmt.Sprint(a.FollowersCount), a.MostRecentTweetID, a.MostRecentTweetDate,
		})
	}
	header := []string{"id", "username", "name", "location", "description",
		"followers_count", "most_recent_tweet_id", "most_recent_tweet_date"}
	if err := export.WriteRecordsCSV(filepath.Join(*outDir, "mutuals_summary.csv"), header, records); err != nil {
		return err
	}
	fmt.Printf("Combined %d accounts from %d batches\n", len(accounts), len(files))
	return nil
}

func cmdReport() error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "./plumage.yaml", "config path")
	archivePath := fs.String("archive", "./data/twitter_archive.json", "archive JSON path")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	eng, err := engineered(cfg, *archivePath)
	if err != nil {
		return err
	}
	core := features.CoreSample(eng)
	fmt.Printf("Core sample: %d of %d rows, %d threads\n", core.Len(), eng.Len(), report.ThreadCount(core))

	hourly := report.HourlyEngagement(core)
	fmt.Println("Engagement by hour of day:")
	for _, h := range report.SortedHours(hourly) {
		fmt.Printf("  %02d:00 -> %d\n", h, hourly[h])
	}
	weekday := report.WeekdayEngagement(core)
	fmt.Println("Engagement by weekday:")
	for _, d := range report.SortedKeys(weekday) {
		fmt.Printf("  %-9s -> %d\n", d, weekday[d])
	}
	tiers := report.TierCounts(core)
	fmt.Println("Rows by account tier:")
	for _, t := range report.SortedKeys(tiers) {
		fmt.Printf("  %-12s -> %d\n", t, tiers[t])
	}

	// Stored classifications, when a classify run has happened.
	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	stored, err := db.LoadClassifications(ctx)
	if err != nil {
		return err
	}
	if len(stored) > 0 {
		humor := make(map[string]int)
		for _, sc := range stored {
			humor[sc.Labels.HumorType]++
		}
		fmt.Printf("Stored classifications: %d\n", len(stored))
		for _, k := range report.SortedKeys(humor) {
			fmt.Printf("  %-17s -> %d\n", k, humor[k])
		}
		if when, err := db.LoadCursor(ctx, "last_classification_run"); err == nil {
			fmt.Println("Last classification run:", when)
		}
	}
	return nil
}
