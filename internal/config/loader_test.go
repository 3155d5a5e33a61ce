package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"lecnote/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		dir := t.TempDir()

		convey.Convey("When the config file does not exist", func() {
			path := filepath.Join(dir, "conf", "lecnote.yaml")

			cfg, err := config.Load(path)

			convey.Convey("Then defaults are returned and written with 0600 perms", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Timezone, convey.ShouldEqual, "Asia/Shanghai")
				convey.So(cfg.LLM.RetryCount, convey.ShouldEqual, 3)
				convey.So(cfg.LLM.MaxTokens, convey.ShouldEqual, 20000)

				info, serr := os.Stat(path)
				convey.So(serr, convey.ShouldBeNil)
				convey.So(info.Mode().Perm(), convey.ShouldEqual, os.FileMode(0o600))
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			yamlContent := `
semester_start: "2025-09-01"
vault_path: /data/vault
clinical_courses: ["Internal Medicine", "Surgery"]
llm:
  model: deepseek-chat
  retry_count: 0
  retry_delay_seconds: 0
`
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)

			cfg, err := config.Load(path)

			convey.Convey("Then file values override defaults and retry knobs are clamped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SemesterStart, convey.ShouldEqual, "2025-09-01")
				convey.So(cfg.VaultPath, convey.ShouldEqual, "/data/vault")
				convey.So(cfg.ClinicalCourses, convey.ShouldResemble, []string{"Internal Medicine", "Surgery"})
				convey.So(cfg.LLM.Model, convey.ShouldEqual, "deepseek-chat")
				convey.So(cfg.LLM.RetryCount, convey.ShouldEqual, 1)
				convey.So(cfg.LLM.RetryDelaySeconds, convey.ShouldEqual, 1)
				convey.So(cfg.LLM.Provider, convey.ShouldEqual, config.ProviderOpenAI)
			})
		})

		convey.Convey("When environment variables are set", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			convey.So(os.WriteFile(path, []byte("vault_path: /from/file\n"), 0o600), convey.ShouldBeNil)

			t.Setenv("LECNOTE_VAULT_PATH", "/from/env")
			t.Setenv("LECNOTE_LLM__MODEL", "qwen-max")
			t.Setenv("LECNOTE_CLINICAL_COURSES", "Pediatrics, Surgery")

			cfg, err := config.Load(path)

			convey.Convey("Then env overrides the file, including nested keys and lists", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.VaultPath, convey.ShouldEqual, "/from/env")
				convey.So(cfg.LLM.Model, convey.ShouldEqual, "qwen-max")
				convey.So(cfg.ClinicalCourses, convey.ShouldResemble, []string{"Pediatrics", "Surgery"})
			})
		})

		convey.Convey("When the semester start is malformed", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			convey.So(os.WriteFile(path, []byte("semester_start: 09/01/2025\n"), 0o600), convey.ShouldBeNil)

			_, err := config.Load(path)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the provider is unknown", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			convey.So(os.WriteFile(path, []byte("llm:\n  provider: carrier-pigeon\n"), 0o600), convey.ShouldBeNil)

			_, err := config.Load(path)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When latency buckets are configured", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			convey.So(os.WriteFile(path, []byte("metrics:\n  latency_buckets: [5, 30, 120]\n"), 0o600), convey.ShouldBeNil)

			cfg, err := config.Load(path)

			convey.Convey("Then they are loaded as given", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Metrics.LatencyBuckets, convey.ShouldResemble, []float64{5, 30, 120})
			})
		})

		convey.Convey("When latency buckets are not increasing", func() {
			path := filepath.Join(dir, "lecnote.yaml")
			convey.So(os.WriteFile(path, []byte("metrics:\n  latency_buckets: [30, 5]\n"), 0o600), convey.ShouldBeNil)

			_, err := config.Load(path)

			convey.Convey("Then validation rejects them", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the path is empty", func() {
			_, err := config.Load("")

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}
