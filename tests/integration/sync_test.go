package integration

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()

	t.Run("all roots exist", func(t *testing.T) {
		t.Parallel()
		env := NewTestEnv(t, 3, "")
		g := NewWithT(t)

		result := env.MustRunCLI("check")
		g.Expect(result.Stdout).To(ContainSubstring("Replicas: 3"))
		g.Expect(result.Stdout).To(ContainSubstring("All replica roots exist"))
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		env := NewTestEnv(t, 2, "")
		g := NewWithT(t)
		g.Expect(os.Remove(env.Roots[1])).To(Succeed())

		result := env.RunCLI("check")
		g.Expect(result.ExitCode).NotTo(Equal(0))
		g.Expect(result.Stderr).To(ContainSubstring("root does not exist"))
		g.Expect(result.Stderr).To(ContainSubstring(env.Roots[1]))
	})

	t.Run("too few roots", func(t *testing.T) {
		t.Parallel()
		env := NewTestEnv(t, 2, "")
		g := NewWithT(t)

		result := env.RunCLI("check", "--root", env.Roots[0])
		g.Expect(result.ExitCode).NotTo(Equal(0))
		g.Expect(result.Stderr).To(ContainSubstring("at least two roots are required"))
	})
}

func TestScanRecordCycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()

	env := NewTestEnv(t, 2, "")
	g := NewWithT(t)

	env.WriteAll("notes.txt", "same")
	env.WriteFile(0, "photos/2024/a.jpg", "jpeg")

	t.Run("first scan reports everything", func(t *testing.T) {
		result := env.MustRunCLI("scan")
		g.Expect(result.Stdout).To(ContainSubstring("notes.txt"))
		g.Expect(result.Stdout).To(ContainSubstring(filepath.Join("photos", "2024", "a.jpg")))
		g.Expect(result.Stdout).To(ContainSubstring("(absent)"))

		entries, err := os.ReadDir(env.ArchiveDir())
		if err == nil {
			g.Expect(entries).To(BeEmpty(), "scan must not write archive files")
		}
	})

	t.Run("record then scan is clean", func(t *testing.T) {
		result := env.MustRunCLI("record")
		g.Expect(result.Stdout).To(ContainSubstring("Recorded 3 directories"))

		result = env.MustRunCLI("scan")
		g.Expect(result.Stdout).To(ContainSubstring("All in sync"))
	})

	t.Run("changes show up", func(t *testing.T) {
		env.WriteFile(1, "notes.txt", "changed on replica 1")
		env.WriteFile(1, "extra.txt", "new")

		result := env.MustRunCLI("scan")
		g.Expect(result.Stdout).To(ContainSubstring("2 differences"))
		g.Expect(result.Stdout).To(ContainSubstring("notes.txt"))
		g.Expect(result.Stdout).To(ContainSubstring("extra.txt"))
		g.Expect(result.Stdout).NotTo(ContainSubstring("a.jpg"))
	})

	t.Run("subtree scan", func(t *testing.T) {
		result := env.MustRunCLI("scan", "--dir", "photos", "--verbose")
		g.Expect(result.Stdout).To(ContainSubstring("Scanning photos"))
		g.Expect(result.Stdout).NotTo(ContainSubstring("notes.txt"))
	})

	t.Run("archive inspection", func(t *testing.T) {
		result := env.MustRunCLI("archive", "list")
		g.Expect(result.Stdout).To(ContainSubstring("3 files"))

		result = env.MustRunCLI("archive", "show")
		g.Expect(result.Stdout).To(ContainSubstring("notes.txt"))
		g.Expect(result.Stdout).To(ContainSubstring("photos"))

		result = env.RunCLI("archive", "show", "../outside")
		g.Expect(result.ExitCode).NotTo(Equal(0))
	})

	t.Run("deletion in one replica", func(t *testing.T) {
		env.MustRunCLI("record")
		env.DeleteFile(0, "notes.txt")

		result := env.MustRunCLI("scan")
		g.Expect(result.Stdout).To(ContainSubstring("1 difference "))
		g.Expect(result.Stdout).To(ContainSubstring("*[0] (absent)"))
	})

	t.Run("history lists runs", func(t *testing.T) {
		result := env.MustRunCLI("history")
		g.Expect(result.Stdout).To(ContainSubstring("record"))
		g.Expect(result.Stdout).To(ContainSubstring("scan"))
		g.Expect(result.Stdout).To(ContainSubstring("ok"))

		result = env.MustRunCLI("history", "-n", "1")
		g.Expect(result.Stdout).NotTo(ContainSubstring("record"))
	})
}

func TestIgnoreRules(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()

	env := NewTestEnv(t, 2, `
ignore:
  paths: ["Microsoft User Data"]
  regexes: ['\.DS_Store$']
  patterns: ["*.tmp"]
`)
	g := NewWithT(t)

	env.WriteFile(0, "Microsoft User Data/x.tmp", "x")
	env.WriteFile(0, "a/.DS_Store", "x")
	env.WriteFile(1, "cache/session.tmp", "x")
	env.WriteFile(1, "docs/readme.txt", "x")

	result := env.MustRunCLI("scan", "--no-journal")
	g.Expect(result.Stdout).To(ContainSubstring(filepath.Join("docs", "readme.txt")))
	g.Expect(result.Stdout).NotTo(ContainSubstring("Microsoft User Data"))
	g.Expect(result.Stdout).NotTo(ContainSubstring(".DS_Store"))
	g.Expect(result.Stdout).NotTo(ContainSubstring("session.tmp"))

	_, err := os.Stat(filepath.Join(env.configDir, "journal.db"))
	g.Expect(os.IsNotExist(err)).To(BeTrue(), "--no-journal must not create the journal")
}

func TestLogging(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()

	env := NewTestEnv(t, 2, "")
	g := NewWithT(t)
	env.WriteAll("f", "x")
	logPath := filepath.Join(env.TestDir, "replicasync.log")

	env.MustRunCLI("record", "--log-level", "debug", "--log-file", logPath)

	g.Eventually(func() (string, error) {
		data, err := os.ReadFile(logPath)
		return string(data), err
	}).Should(ContainSubstring("Scanning directory"))

	result := env.RunCLI("scan", "--log-level", "loud")
	g.Expect(result.ExitCode).NotTo(Equal(0))
}

func TestVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	g := NewWithT(t)

	result := RunCLIWithConfigDir(t.TempDir(), "--version")
	g.Expect(result.ExitCode).To(Equal(0))
	g.Expect(result.Stdout).To(HavePrefix("replicasync version"))
}
