package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/orchestrator"
)

var (
	renderMode       string
	renderAudio      string
	renderSkit       string
	renderArticle    string
	renderTimestamps string
	renderOutput     string
	renderJob        string
	renderTemplates  media.Templates
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a skit video",
	Long: `Render a video from a skit. The mode picks where the audio comes from:

  audio    --audio and --skit: split the recording at speaker changes
  skit     --skit: synthesize every line
  article  --article: write a skit from the article, then synthesize it

Every mode needs --template1, --template2 and --closing. The video and a
manifest land in <paths.outputs>/<job>/ unless -o is given.

Examples:
  pawdcast render --mode audio --audio take1.wav --skit skit.txt \
    --template1 dog.mp4 --template2 cat.mp4 --closing outro.mp4
  pawdcast render --mode article --article news.txt \
    --template1 dog.mp4 --template2 cat.mp4 --closing outro.mp4 -o news.mp4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := orchestrator.Request{
			JobID:      renderJob,
			Mode:       orchestrator.Mode(renderMode),
			Audio:      renderAudio,
			Timestamps: renderTimestamps,
			Templates:  renderTemplates,
			Output:     renderOutput,
		}
		var err error
		if req.Skit, err = readOptional(renderSkit); err != nil {
			return err
		}
		if req.Article, err = readOptional(renderArticle); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := loadApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		if err := a.ffmpeg.Check(ctx); err != nil {
			return err
		}

		stderr := cmd.ErrOrStderr()
		res, err := a.pipeline.Run(ctx, req, func(f float64, msg string) {
			fmt.Fprintf(stderr, "\r%s %3.0f%% %-40s", progressBar(f, 30), f*100, truncate(msg, 40))
		})
		fmt.Fprintln(stderr)
		if err != nil {
			a.log.WithError(err).Debug("render failed")
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Good.Render("✓ video created: ")+res.Video)
		fmt.Fprintln(out, styles.Dim.Render(fmt.Sprintf("  job %s, %d segments, manifest in %s", res.JobID, len(res.Segments), res.Dir)))
		return nil
	},
}

// readOptional returns the contents of path, stdin for "-", or "" when unset.
func readOptional(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderMode, "mode", string(orchestrator.ModeAudio), "audio, skit or article")
	f.StringVar(&renderAudio, "audio", "", "recording of the whole skit (audio mode)")
	f.StringVar(&renderSkit, "skit", "", "skit text file, - for stdin")
	f.StringVar(&renderArticle, "article", "", "article text file, - for stdin (article mode)")
	f.StringVar(&renderTimestamps, "timestamps", "", "comma separated split times in seconds (audio mode)")
	f.StringVar(&renderTemplates.Speaker1, "template1", "", "video clip for speaker 1")
	f.StringVar(&renderTemplates.Speaker2, "template2", "", "video clip for the other speaker")
	f.StringVar(&renderTemplates.Closing, "closing", "", "closing clip appended to the video")
	f.StringVarP(&renderOutput, "output", "o", "", "output video path")
	f.StringVar(&renderJob, "job", "", "job id (default: random uuid)")
}
