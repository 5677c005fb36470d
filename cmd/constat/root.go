package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	sivafs "github.com/cyraxred/go-billy-siva"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh/terminal"
	progress "gopkg.in/cheggaaa/pb.v1"

	"github.com/cyraxred/constat"
	"github.com/cyraxred/constat/render"
)

// oneLineWriter splits the output data by lines and outputs one on top of
// another using '\r'. It also does some dark magic to handle Git statuses.
type oneLineWriter struct {
	Writer io.Writer
}

func (writer oneLineWriter) Write(p []byte) (n int, err error) {
	strp := strings.TrimSpace(string(p))
	if strings.HasSuffix(strp, "done.") || len(strp) == 0 {
		strp = "cloning..."
	} else {
		strp = strings.Replace(strp, "\n", "\033[2K\r", -1)
	}
	_, err = writer.Writer.Write([]byte("\033[2K\r"))
	if err != nil {
		return
	}
	n, err = writer.Writer.Write([]byte(strp))
	return
}

func loadSSHIdentity(sshIdentity string) (*ssh.PublicKeys, error) {
	actual, err := homedir.Expand(sshIdentity)
	if err != nil {
		return nil, err
	}
	return ssh.NewPublicKeysFromFile("git", actual, "")
}

func loadRepository(uri string, cachePath string, disableStatus bool, sshIdentity string) *git.Repository {
	var repository *git.Repository
	var backend storage.Storer
	var err error
	if strings.Contains(uri, "://") || regexp.MustCompile("^[A-Za-z]\\w*@[A-Za-z0-9][\\w.]*:").MatchString(uri) {
		if cachePath != "" {
			backend = filesystem.NewStorage(osfs.New(cachePath), cache.NewObjectLRUDefault())
			_, err = os.Stat(cachePath)
			if !os.IsNotExist(err) {
				log.Printf("warning: deleted %s\n", cachePath)
				os.RemoveAll(cachePath)
			}
		} else {
			backend = memory.NewStorage()
		}
		cloneOptions := &git.CloneOptions{URL: uri}
		if !disableStatus {
			fmt.Fprint(os.Stderr, "connecting...\r")
			cloneOptions.Progress = oneLineWriter{Writer: os.Stderr}
		}

		if sshIdentity != "" {
			auth, err := loadSSHIdentity(sshIdentity)
			if err != nil {
				log.Printf("Failed loading SSH Identity %s\n", err)
			}
			cloneOptions.Auth = auth
		}

		repository, err = git.Clone(backend, nil, cloneOptions)
		if !disableStatus {
			fmt.Fprint(os.Stderr, "\033[2K\r")
		}
	} else if stat, err2 := os.Stat(uri); err2 == nil && !stat.IsDir() {
		localFs := osfs.New(filepath.Dir(uri))
		tmpFs := memfs.New()
		basePath := filepath.Base(uri)
		fs, err2 := sivafs.NewFilesystem(localFs, basePath, tmpFs)
		if err2 != nil {
			log.Panicf("unable to create a siva filesystem from %s: %v", uri, err2)
		}
		sivaStorage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
		repository, err = git.Open(sivaStorage, tmpFs)
	} else {
		if uri[len(uri)-1] == os.PathSeparator {
			uri = uri[:len(uri)-1]
		}
		repository, err = git.PlainOpen(uri)
	}
	if err != nil {
		log.Panicf("failed to open %s: %v", uri, err)
	}
	return repository
}

// repoName derives the chart caption and the default output name from the
// repository URI.
func repoName(uri string) string {
	name := strings.TrimRight(uri, string(os.PathSeparator))
	name = name[strings.LastIndexAny(name, "/\\:")+1:]
	name = strings.TrimSuffix(name, ".git")
	name = strings.TrimSuffix(name, ".siva")
	if name == "" || name == "." {
		if absolute, err := filepath.Abs(uri); err == nil {
			name = filepath.Base(absolute)
		} else {
			name = "unknown-repo"
		}
	}
	return name
}

func parseResolution(value string) (width, height int, err error) {
	parts := strings.SplitN(value, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q, expected WxH", value)
	}
	if width, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %v", value, err)
	}
	if height, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %v", value, err)
	}
	return width, height, nil
}

func headSpec(flags *pflag.FlagSet) (constat.VersionSpec, error) {
	commit, _ := flags.GetString("commit")
	branch, _ := flags.GetString("branch")
	before, _ := flags.GetString("before")
	after, _ := flags.GetString("after")
	switch {
	case commit != "":
		return constat.VersionSpec{Kind: constat.VersionCommit, Hash: commit}, nil
	case branch != "":
		return constat.VersionSpec{Kind: constat.VersionBranch, Branch: branch}, nil
	case before != "":
		date, err := time.Parse("2006-01-02", before)
		if err != nil {
			return constat.VersionSpec{}, err
		}
		return constat.VersionSpec{Kind: constat.VersionLastBefore, Date: date}, nil
	case after != "":
		date, err := time.Parse("2006-01-02", after)
		if err != nil {
			return constat.VersionSpec{}, err
		}
		return constat.VersionSpec{Kind: constat.VersionFirstAfter, Date: date}, nil
	}
	return constat.VersionSpec{Kind: constat.VersionHead}, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "constat [flags] <repository> [cache path]",
	Short: "Draws how many lines of code survive per author over the history of a Git repository.",
	Long: `constat replays the commit DAG of a Git repository and attributes every
surviving line of every commit to the author who most recently wrote it.
The result is rendered as a stacked per-author chart of lines of code.

The repository can be a local directory, a .siva archive or a remote URL;
remote repositories are cloned into memory, or into the optional cache path.
Progress is written to stderr, the chart to the output file.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		disableStatus, _ := flags.GetBool("quiet")
		sshIdentity, _ := flags.GetString("ssh-identity")
		top, _ := flags.GetInt("top")
		output, _ := flags.GetString("output")
		resolution, _ := flags.GetString("resolution")
		since, _ := flags.GetString("since")
		patterns, _ := flags.GetStringSlice("pattern")
		languages, _ := flags.GetString("languages")
		dumpPlan, _ := flags.GetBool("dump-plan")

		uri := "."
		if len(args) > 0 {
			uri = args[0]
		}
		cachePath := ""
		if len(args) == 2 {
			cachePath = args[1]
		}

		width, height, err := parseResolution(resolution)
		if err != nil {
			log.Fatal(err)
		}
		head, err := headSpec(flags)
		if err != nil {
			log.Fatalf("failed to parse the head selection: %v", err)
		}
		var filter constat.Filter
		if since != "" {
			date, err := time.Parse("2006-01-02", since)
			if err != nil {
				log.Fatalf("failed to parse --since: %v", err)
			}
			filter = func(commit constat.Commit) bool {
				return commit.Timestamp().After(date)
			}
		}
		pathFilter, err := render.NewPathFilter(patterns, strings.Split(languages, ","))
		if err != nil {
			log.Fatal(err)
		}
		if output == "" {
			output = repoName(uri) + ".constat.png"
		}

		repository := loadRepository(uri, cachePath, disableStatus, sshIdentity)

		registry := constat.NewRegistry()
		builder := constat.NewSeriesBuilder(registry, pathFilter.Match)
		var bar *progress.ProgressBar
		engine := &constat.Engine{
			Repository: constat.WrapRepository(repository),
			Registry:   registry,
			Head:       head,
			Filter:     filter,
			DumpPlan:   dumpPlan,
			OnCommit: func(repo constat.Repository, commit constat.Commit,
				tree *constat.Tree, index, total int) {
				if !disableStatus {
					if bar == nil {
						bar = progress.New(total)
						bar.Callback = func(msg string) {
							os.Stderr.WriteString("\033[2K\r" + msg)
						}
						bar.NotPrint = true
						bar.ShowPercent = false
						bar.ShowSpeed = false
						bar.SetMaxWidth(80).Start()
					}
					bar.Set(index + 1)
				}
				builder.Consume(repo, commit, tree, index, total)
			},
		}
		if err := engine.Run(); err != nil {
			log.Fatalf("failed to analyze %s: %v", uri, err)
		}
		if bar != nil {
			bar.Finish()
			fmt.Fprint(os.Stderr, "\033[2K\r")
		}
		if !disableStatus && !terminal.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprint(os.Stderr, "rendering...\r")
		}

		series := builder.Series(top, constat.OlderCodeName)
		chart := render.Chart{
			Title:  "Contributor Stat for " + repoName(uri),
			Width:  width,
			Height: height,
		}
		if err := chart.Render(series, output); err != nil {
			log.Fatalf("failed to render the chart: %v", err)
		}
		if !disableStatus {
			fmt.Fprintf(os.Stderr, "\033[2K\rwrote %s\n", output)
		}
	},
}

// versionCmd prints the API version and the Git commit hash
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and exit.",
	Long:  ``,
	Args:  cobra.MaximumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %d\nGit:     %s\n", constat.BinaryVersion, constat.BinaryGitHash)
	},
}

func init() {
	rootFlags := rootCmd.Flags()
	rootFlags.Int("top", 5, "Number of the most productive authors drawn individually; "+
		"the rest are folded into \""+render.OtherAuthorsName+"\".")
	rootFlags.String("output", "", "Path to the rendered chart. The format follows the "+
		"extension (png, svg, pdf). Defaults to <repository>.constat.png.")
	rootFlags.String("resolution", "1024x768", "Resolution of the rendered chart, in pixels.")
	rootFlags.String("commit", "", "Analyze up to the specified commit hash instead of HEAD.")
	rootFlags.String("branch", "", "Analyze up to the tip of the specified branch instead of HEAD.")
	rootFlags.String("before", "", "Analyze up to the last commit before the "+
		"specified date (YYYY-MM-DD) instead of HEAD.")
	rootFlags.String("after", "", "Analyze up to the first commit after the "+
		"specified date (YYYY-MM-DD) instead of HEAD.")
	rootFlags.String("since", "", "Do not descend into commits older than the specified "+
		"date (YYYY-MM-DD); everything older is attributed to \""+constat.OlderCodeName+"\".")
	rootFlags.StringSlice("pattern", nil, "Count only the paths matching the glob pattern. "+
		"May be repeated; an empty list counts everything.")
	rootFlags.String("languages", "all", "Comma separated list of programming languages to "+
		"count. \"all\" disables the filter.")
	rootFlags.Bool("quiet", !terminal.IsTerminal(int(os.Stdin.Fd())),
		"Do not print status updates to stderr.")
	rootFlags.Bool("dump-plan", false, "Print the processing plan to stderr before running.")
	rootFlags.String("ssh-identity", "", "Path to SSH identity file (e.g., ~/.ssh/id_rsa) to clone from an SSH remote.")
	if err := rootCmd.MarkFlagFilename("ssh-identity"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(versionCmd)
}
