package queue

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

// Save-file record layout, one per queued entry:
//
//	=== <state> <next_action_time> <network_address> <length> <ms_to_sc> <need_repack>
//	<raw SIP datagram, exactly length bytes>
//	<blank line>
//
// Times are Unix seconds. Records are written newest-first so the loader
// rebuilds the queue with cheap ordered inserts.

// Save writes the whole queue to path, truncating any previous file.
func Save(q *Queue, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open savefile %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	howmany := 0
	for _, p := range q.SnapshotReverse() {
		text := p.Text()
		src := p.SrcAddr
		if src == "" {
			src = "0.0.0.0:0"
		}
		_, err := fmt.Fprintf(w, "=== %d %d %s %d %d %d\n%s\n\n",
			int(p.State), p.NextActionTime.Unix(), src, len(text),
			boolInt(p.MSToSC), boolInt(p.NeedRepack), text)
		if err != nil {
			f.Close()
			return fmt.Errorf("write savefile: %w", err)
		}
		howmany++
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush savefile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close savefile: %w", err)
	}
	slog.Info("saved queued messages", "count", howmany, "file", path)
	return nil
}

// Load reads records from path, validates each with validate (a SIP
// status code, 0 to accept) and hands the survivors to insert. Records
// that fail to parse or validate, and saved responses, are counted as
// errors; if any occurred the file is cleared so a second crash cannot
// re-ingest the same bad data. A missing file is not an error.
func Load(path string, validate func(p *message.Pending) int, insert func(p *message.Pending)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open savefile %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	howmany, howmanyerrs := 0, 0
	for {
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 7 || fields[0] != "===" {
			break
		}
		state, err1 := strconv.Atoi(fields[1])
		when, err2 := strconv.ParseInt(fields[2], 10, 64)
		length, err3 := strconv.Atoi(fields[4])
		msToSC, err4 := strconv.Atoi(fields[5])
		needRepack, err5 := strconv.Atoi(fields[6])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || length < 0 {
			howmanyerrs++
			break
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			howmanyerrs++
			break
		}
		howmany++

		p := message.NewFromRaw(body, fields[3])
		p.State = message.State(state)
		p.NextActionTime = time.Unix(when, 0)
		p.MSToSC = msToSC != 0
		p.NeedRepack = needRepack != 0
		if !p.State.Valid() {
			slog.Warn("savefile record has invalid state", "state", state)
			howmanyerrs++
			continue
		}
		if code := validate(p); code != 0 {
			slog.Warn("received bad message", "error", code)
			howmanyerrs++
			continue
		}
		if p.IsResponse() {
			// Responses have no business surviving a restart.
			slog.Debug("read saved response, dropping", "tag", p.Tag)
			howmanyerrs++
			continue
		}
		insert(p)
	}
	slog.Info("read saved messages", "total", howmany, "bad", howmanyerrs)

	if howmanyerrs != 0 {
		if err := os.Truncate(path, 0); err != nil {
			slog.Error("failed to clear savefile after errors", "file", path, "err", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
