package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Aruomeng/JobRec-KG/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("JOBREC_RECALL_K", "300")
			_ = os.Setenv("JOBREC_FINAL_K", "5")
			_ = os.Setenv("JOBREC_WEIGHT_DEEP", "0.5")
			_ = os.Setenv("JOBREC_GRAPH_NAME", "jobs")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RecallK, convey.ShouldEqual, 300)
				convey.So(cfg.FinalK, convey.ShouldEqual, 5)
				convey.So(cfg.WeightDeep, convey.ShouldEqual, 0.5)
				convey.So(cfg.GraphName, convey.ShouldEqual, "jobs")
				convey.So(cfg.RankK, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
# funnel
recall_k: 400
rank_k: 40
final_k: 8
artifact_path: /var/lib/jobrec/model.db
weight_skill: 0.35
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("JOBREC_CONFIG", tmpFile)
			_ = os.Setenv("JOBREC_FINAL_K", "4")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RecallK, convey.ShouldEqual, 400)
				convey.So(cfg.RankK, convey.ShouldEqual, 40)
				convey.So(cfg.FinalK, convey.ShouldEqual, 4)
				convey.So(cfg.ArtifactPath, convey.ShouldEqual, "/var/lib/jobrec/model.db")
				convey.So(cfg.WeightSkill, convey.ShouldEqual, 0.35)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 128)
			})
		})

		convey.Convey("When an explicit path is given", func() {
			tmpFile := createTempConfigFile("batch_size: 64\n")
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.BatchSize, convey.ShouldEqual, 64)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/jobrec.yaml")
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the funnel sizes are out of order", func() {
			_ = os.Setenv("JOBREC_RANK_K", "900")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("JOBREC_BATCH_SIZE", "lots")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"JOBREC_CONFIG",
		"JOBREC_RECALL_K",
		"JOBREC_RANK_K",
		"JOBREC_FINAL_K",
		"JOBREC_WEIGHT_DEEP",
		"JOBREC_GRAPH_NAME",
		"JOBREC_BATCH_SIZE",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "jobrec-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
