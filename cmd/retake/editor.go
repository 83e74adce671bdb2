package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"retake/internal/capture"
	"retake/internal/fileutil"
	"retake/internal/notes"
	"retake/internal/session"
	"retake/internal/timeline"
)

const editorHelp = `Commands:
  status                      show state, duration, selection and position
  segments                    list video segments and audio overlays
  select <sec>                select the default window starting at <sec>
  adjust <start> <end>        replace the selection
  clear                       drop the selection
  delete                      cut the selection and start recording its replacement
  overlay                     record new audio over the selection
  stop                        stop recording and apply the capture
  replace [sec]               delete, record for [sec] (selection length), and apply
  queue <video|audio> <file>  queue a prepared recording (file adapter)
  seek <sec>                  move the playback position
  note <text>                 add a note at the playback position
  notes                       list notes
  preview <file>              write a preview of the current edit
  finalize                    flatten and submit
  cancel                      abandon the current operation
  reset                       return to the original recording
  rerecord <file>             replace the whole recording
  quit                        leave the editor`

// editor drives a session controller from line-oriented commands.
type editor struct {
	ctrl   *session.Controller
	files  *capture.FileAdapter
	out    io.Writer
	// strict stops at the first failing command.
	strict bool
	prompt bool

	resetOffered bool
}

var errQuit = errors.New("quit")

func (e *editor) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for {
		if e.prompt {
			fmt.Fprint(e.out, "retake> ")
		}
		if !scanner.Scan() {
			break
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		err := e.exec(ctx, text)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.strict {
			return fmt.Errorf("line %d (%s): %w", line, text, err)
		}
		e.report(err)
	}
	return scanner.Err()
}

func (e *editor) report(err error) {
	kind := session.ErrorKind(err)
	fmt.Fprintf(e.out, "error (%s): %v\n", kind, err)
	if session.Recoverable(err) {
		return
	}
	var finalizeErr *session.FinalizeError
	if errors.As(err, &finalizeErr) && finalizeErr.ResetOffered {
		e.resetOffered = true
		fmt.Fprintln(e.out, "The export failed. Type 'reset' to return to the original recording, or retry 'finalize'.")
	}
}

func (e *editor) exec(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "help", "?":
		fmt.Fprintln(e.out, editorHelp)
	case "quit", "exit":
		return errQuit
	case "status":
		e.printStatus()
	case "segments":
		e.printSegments()
	case "select":
		at, err := secondsArg(args, 0)
		if err != nil {
			return err
		}
		r, err := e.ctrl.SelectRange(at)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Selected %s\n", r)
	case "adjust":
		start, err := secondsArg(args, 0)
		if err != nil {
			return err
		}
		end, err := secondsArg(args, 1)
		if err != nil {
			return err
		}
		r := timeline.Range{Start: start, End: end}
		if err := e.ctrl.AdjustRange(r); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Selected %s\n", r)
	case "clear":
		return e.ctrl.ClearRange()
	case "delete":
		report, err := e.ctrl.DeleteSelection(ctx)
		e.printPreview(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Deleted; timeline is now %s. Recording replacement, type 'stop' to finish.\n",
			timeline.FormatSeconds(e.ctrl.Duration()))
	case "overlay":
		if err := e.ctrl.OverlayAudioOnSelection(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Recording audio, type 'stop' to finish.")
	case "stop":
		seg, err := e.ctrl.StopRecording(ctx)
		if err != nil {
			return err
		}
		e.printApplied(seg)
	case "replace":
		var recordFor time.Duration
		if len(args) > 0 {
			d, err := secondsArg(args, 0)
			if err != nil {
				return err
			}
			recordFor = d
		}
		seg, report, err := e.ctrl.ReplaceSelectionWithCapture(ctx, recordFor)
		e.printPreview(report)
		if err != nil {
			return err
		}
		e.printApplied(seg)
	case "queue":
		return e.queue(args)
	case "seek":
		at, err := secondsArg(args, 0)
		if err != nil {
			return err
		}
		return e.ctrl.Seek(at)
	case "note":
		note, err := e.ctrl.AddNote(rest)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Noted %s\n", note)
	case "notes":
		for _, rendered := range notes.Render(e.ctrl.ListNotes()) {
			fmt.Fprintln(e.out, rendered)
		}
	case "preview":
		return e.preview(ctx, rest)
	case "finalize":
		return e.finalize(ctx)
	case "cancel":
		e.ctrl.Cancel()
		fmt.Fprintln(e.out, "Canceled")
	case "reset":
		e.ctrl.Reset()
		e.resetOffered = false
		fmt.Fprintf(e.out, "Reset to the original %s recording\n", timeline.FormatSeconds(e.ctrl.Duration()))
	case "rerecord":
		if rest == "" {
			return errors.New("rerecord requires a file")
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return fmt.Errorf("read recording: %w", err)
		}
		if err := e.ctrl.RerecordEntirely(ctx, data); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Recording replaced; timeline is %s\n", timeline.FormatSeconds(e.ctrl.Duration()))
	default:
		return fmt.Errorf("unknown command %q (type 'help')", name)
	}
	return nil
}

func secondsArg(args []string, index int) (time.Duration, error) {
	if index >= len(args) {
		return 0, fmt.Errorf("missing argument %d (seconds)", index+1)
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(args[index], "s"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q", args[index])
	}
	return timeline.Seconds(value), nil
}

func (e *editor) queue(args []string) error {
	if e.files == nil {
		return errors.New("queue is only available with the file capture adapter")
	}
	if len(args) != 2 {
		return errors.New("usage: queue <video|audio> <file>")
	}
	var kind capture.Kind
	switch strings.ToLower(args[0]) {
	case "video":
		kind = capture.KindVideoAudio
	case "audio":
		kind = capture.KindAudioOnly
	default:
		return fmt.Errorf("unknown capture kind %q", args[0])
	}
	e.files.Queue(kind, args[1])
	fmt.Fprintf(e.out, "Queued %s capture (%d pending)\n", args[0], e.files.Pending(kind))
	return nil
}

func (e *editor) printStatus() {
	fields := [][2]string{
		{"State", e.ctrl.State().String()},
		{"Duration", timeline.FormatSeconds(e.ctrl.Duration())},
		{"Position", timeline.FormatSeconds(e.ctrl.Position())},
		{"Segments", strconv.Itoa(len(e.ctrl.Segments()))},
		{"Overlays", strconv.Itoa(len(e.ctrl.Overlays()))},
		{"Notes", strconv.Itoa(len(e.ctrl.ListNotes()))},
	}
	if r, ok := e.ctrl.Selection(); ok {
		fields = append(fields, [2]string{"Selection", r.String()})
	}
	if e.resetOffered {
		fields = append(fields, [2]string{"Reset offered", yesNo(true)})
	}
	fmt.Fprintln(e.out, renderFields(fields))
}

func (e *editor) printSegments() {
	headers := []string{"#", "Track", "Start", "End", "Media Offset", "Bytes"}
	var rows [][]string
	add := func(segs []timeline.Segment) {
		for _, s := range segs {
			rows = append(rows, []string{
				strconv.Itoa(len(rows) + 1),
				s.Track.String(),
				timeline.FormatSeconds(s.Start),
				timeline.FormatSeconds(s.End),
				timeline.FormatSeconds(s.MediaOffset),
				strconv.Itoa(s.Size()),
			})
		}
	}
	add(e.ctrl.Segments())
	add(e.ctrl.Overlays())
	fmt.Fprintln(e.out, renderTable(headers, rows, 0, 2, 3, 4, 5))
}

func (e *editor) printPreview(report session.PreviewReport) {
	switch {
	case report.Err != nil:
		fmt.Fprintf(e.out, "Preview unavailable (%v); editing continues\n", report.Err)
	case report.Artifact != nil:
		fmt.Fprintf(e.out, "Preview rendered: %d bytes from %d chunks\n", report.Artifact.Size(), report.Artifact.Chunks)
	}
}

func (e *editor) printApplied(seg timeline.Segment) {
	fmt.Fprintf(e.out, "Applied %s capture at [%s, %s); timeline is now %s\n",
		seg.Track, timeline.FormatSeconds(seg.Start), timeline.FormatSeconds(seg.End),
		timeline.FormatSeconds(e.ctrl.Duration()))
}

func (e *editor) preview(ctx context.Context, target string) error {
	if target == "" {
		return errors.New("preview requires an output file")
	}
	artifact, err := e.ctrl.Preview(ctx)
	if err != nil {
		return err
	}
	if _, err := fileutil.WriteFileAtomic(target, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	fmt.Fprintf(e.out, "Wrote preview to %s (%d bytes)\n", target, artifact.Size())
	return nil
}

func (e *editor) finalize(ctx context.Context) error {
	last := ""
	result, err := e.ctrl.Finalize(ctx, func(p session.Progress) {
		if p.Message == last {
			return
		}
		last = p.Message
		if p.Percent >= 0 {
			fmt.Fprintf(e.out, "  %3.0f%% %s\n", p.Percent, p.Message)
		} else {
			fmt.Fprintf(e.out, "       %s\n", p.Message)
		}
	})
	if err != nil {
		return err
	}
	e.resetOffered = false
	fmt.Fprintf(e.out, "Submitted %s (%d bytes, %s, %d notes)\n",
		result.SubmissionID, result.ArtifactBytes, timeline.FormatSeconds(result.Duration), result.Notes)
	for _, w := range result.Warnings {
		fmt.Fprintf(e.out, "warning: %v\n", w)
	}
	return nil
}
