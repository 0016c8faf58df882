package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/audio"
	"github.com/dgnsrekt/herald/internal/playback"
	"github.com/dgnsrekt/herald/internal/settings"
)

var (
	sayLang  string
	saySink  string
	sayFiles []string

	errNothingToSay = errors.New("nothing to say: pass text as arguments, on stdin or with --file")
)

var sayCmd = &cobra.Command{
	Use:   "say [TEXT...]",
	Short: "Speak text on the local speaker",
	Long: paragraph(fmt.Sprintf("\n%s text through the same queue the bot uses, without connecting to Discord. Each argument, or each line of stdin, is queued as its own item and played in order.",
		keyword("Speak"))),
	Example: paragraph("herald say \"hello there\" \"general kenobi\"\necho salut | herald say --lang ro\nherald say --file intro.mp3 \"welcome\""),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		lines := args
		if len(lines) == 0 {
			pipe, err := stdinIsPipe()
			if err != nil {
				return err
			}
			if pipe {
				if lines, err = readLines(os.Stdin); err != nil {
					return err
				}
			}
		}
		if len(lines) == 0 && len(sayFiles) == 0 {
			return errNothingToSay
		}
		return say(ctx, cmd.OutOrStdout(), lines)
	},
}

func init() {
	sayCmd.Flags().StringVarP(&sayLang, "lang", "l", "", "language of the text (default guilds.language)")
	sayCmd.Flags().StringVar(&saySink, "sink", "speaker", "where to play: speaker or mock")
	sayCmd.Flags().StringArrayVarP(&sayFiles, "file", "f", nil, "MP3 file to play before the text (repeatable)")
}

// stdinIsPipe reports whether data is being piped into stdin.
func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, err
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read stdin: %w", err)
	}
	return lines, nil
}

// newLocalSink returns the sink named by --sink and its closer.
func newLocalSink(name string) (playback.Sink, func() error, error) {
	switch name {
	case "mock":
		m := audio.NewMockSink(audio.WithDelayFactor(0.1))
		return m, m.Close, nil
	case "speaker", "":
		sc := audio.DefaultSpeakerConfig()
		sc.SampleRate = cfg.Speaker.SampleRate
		sc.Channels = cfg.Speaker.Channels
		sc.BufferSize = cfg.Speaker.BufferSize
		s, err := audio.NewSpeaker(sc)
		if err != nil {
			return nil, nil, err
		}
		if err := s.SetVolume(cfg.Speaker.Volume); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q: use speaker or mock", name)
	}
}

func say(ctx context.Context, out io.Writer, lines []string) error {
	lang := sayLang
	if lang == "" {
		lang = cfg.Guilds.Language
	}

	renderer, closeRenderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeRenderer() }()

	sink, closeSink, err := newLocalSink(saySink)
	if err != nil {
		return err
	}
	defer func() { _ = closeSink() }()

	scheduler := playback.New(sink, playback.WithMaxPending(cfg.Playback.MaxPending))
	defer func() { _ = scheduler.Close() }()

	announcer := announce.New(renderer, scheduler, settings.New("", guildDefaults(cfg)), nil)
	requester := os.Getenv("USER")

	t := newTally()
	report := func(label, id string, err error) {
		if playback.IsWarning(err) {
			log.Warn("Playback problem", "error", err)
		}
		if t.record(id, err) {
			fmt.Fprintf(out, "  %s %s\n", keyword("queued"), label)
			return
		}
		fmt.Fprintf(out, "  %s %s %s\n", faint("skipped"), label, faint(err.Error()))
	}

	for _, path := range sayFiles {
		item, err := playback.NewItem(audio.LocalSink, playback.FilePayload(path),
			playback.WithLabel(path),
			playback.WithRequester(requester),
		)
		if err != nil {
			report(path, "", err)
			continue
		}
		report(path, item.ID, scheduler.Enqueue(audio.LocalSink, item))
	}

	for _, line := range lines {
		desc, err := announcer.Announce(ctx, audio.LocalSink, line, lang, requester)
		report(line, desc.ID, err)
	}

	if err := scheduler.WaitIdle(ctx, audio.LocalSink); err != nil {
		return err
	}

	fmt.Fprintln(out, paragraph(fmt.Sprintf("\nPlayed %s, skipped %s.",
		keyword(fmt.Sprint(len(t.queued))), faint(fmt.Sprint(t.dropped)))))
	if len(t.queued) == 0 {
		return errors.New("nothing could be played")
	}
	return nil
}

// tally counts the items say queued. An item named by a later warning is
// moved to dropped.
type tally struct {
	queued  map[string]bool
	dropped int
}

func newTally() *tally {
	return &tally{queued: make(map[string]bool)}
}

// record files the enqueue result of item id and reports whether the item
// is still queued.
func (t *tally) record(id string, err error) bool {
	switch {
	case err == nil:
	case playback.IsWarning(err):
		for queued := range t.queued {
			if playback.Dropped(err, queued) {
				delete(t.queued, queued)
				t.dropped++
			}
		}
		if playback.Dropped(err, id) {
			t.dropped++
			return false
		}
	default:
		t.dropped++
		return false
	}
	t.queued[id] = true
	return true
}
