// Package watch streams document changes as human or machine readable lines.
// It backs the `mural watch` command: subscribe to a store, print one line
// per object change until the context ends.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

// Event is one change to one object, flattened for output.
type Event struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"` // "put" or "delete"
	ID     string    `json:"id"`
	Origin string    `json:"origin"`

	// Present on puts only.
	Type  board.ObjectType `json:"type,omitempty"`
	Label string           `json:"label,omitempty"`
	By    string           `json:"by,omitempty"`
}

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Watcher prints document change events to a writer.
type Watcher struct {
	store  document.Store
	out    io.Writer
	format Format
	now    func() time.Time
}

// New creates a watcher writing to out.
func New(store document.Store, out io.Writer, format Format) *Watcher {
	return &Watcher{store: store, out: out, format: format, now: time.Now}
}

// Run subscribes and prints until the context ends or the subscription
// closes. Undecodable entries are reported inline rather than aborting the
// stream.
func (w *Watcher) Run(ctx context.Context) error {
	sub, err := w.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w.out, "! %v\n", err)
		case cs, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := w.printChangeSet(cs); err != nil {
				return err
			}
		}
	}
}

// printChangeSet emits one line per object, deletes first, puts in stable
// ID order so batch output is deterministic.
func (w *Watcher) printChangeSet(cs *document.ChangeSet) error {
	at := w.now()

	deletes := append([]string(nil), cs.Deletes...)
	sort.Strings(deletes)
	for _, id := range deletes {
		if err := w.print(Event{At: at, Action: "delete", ID: id, Origin: cs.Origin}); err != nil {
			return err
		}
	}

	putIDs := make([]string, 0, len(cs.Puts))
	for id := range cs.Puts {
		putIDs = append(putIDs, id)
	}
	sort.Strings(putIDs)

	for _, id := range putIDs {
		ev := Event{At: at, Action: "put", ID: id, Origin: cs.Origin}
		if obj, err := board.Decode(cs.Puts[id]); err != nil {
			ev.Label = fmt.Sprintf("<malformed: %v>", err)
		} else {
			ev.Type = obj.Type
			ev.Label = objectLabel(obj)
			ev.By = obj.LastModifiedBy
		}
		if err := w.print(ev); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) print(ev Event) error {
	if w.format == FormatJSON {
		line, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w.out, "%s\n", line)
		return err
	}

	switch ev.Action {
	case "delete":
		_, err := fmt.Fprintf(w.out, "%s  delete  %s\n", ev.At.Format("15:04:05"), ev.ID)
		return err
	default:
		_, err := fmt.Fprintf(w.out, "%s  put     %-12s %s  %q by %s\n",
			ev.At.Format("15:04:05"), ev.Type, ev.ID, ev.Label, ev.By)
		return err
	}
}

// objectLabel picks the most recognisable text on an object for the
// one-line summary.
func objectLabel(o *board.Object) string {
	switch {
	case o.IsFrame():
		return o.Title
	case o.IsConnector():
		return fmt.Sprintf("%s -> %s", o.Start.TargetID, o.End.TargetID)
	default:
		return o.Text
	}
}
