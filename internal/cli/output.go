package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

const displayTime = "2006-01-02 15:04"

// emit writes v as indented JSON under --json and through human otherwise.
func (a *app) emit(cmd *cobra.Command, v any, human func(w io.Writer) error) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return human(out)
}

// table writes aligned columns and flushes once fn returns.
func table(w io.Writer, header string, fn func(tw io.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	fn(tw)
	return tw.Flush()
}

func stamp(t time.Time) string {
	return t.Local().Format(displayTime)
}

// ago is the relative form used in listings.
func ago(t time.Time) string {
	return humanize.Time(t)
}

// excerpt shortens s to one line of at most n characters.
func excerpt(s *string, n int) string {
	if s == nil {
		return "-"
	}
	line := strings.Join(strings.Fields(*s), " ")
	runes := []rune(line)
	if len(runes) > n {
		return string(runes[:n-1]) + "…"
	}
	return line
}

// resolveSets turns atomic set references into IDs. A reference is either a
// UUID or the name of an existing set.
func resolveSets(ctx context.Context, sc types.Scope, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, err := uuid.Parse(ref); err == nil {
			ids = append(ids, ref)
			continue
		}
		set, err := sc.AtomicSets().GetByName(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("atomic set %q: %w", ref, err)
		}
		ids = append(ids, set.ID)
	}
	return ids, nil
}

func printSetNames(w io.Writer, sets []types.AtomicSetRef) {
	names := make([]string, len(sets))
	for i, s := range sets {
		names[i] = s.Name
	}
	fmt.Fprintf(w, "Atomic sets: %s\n", strings.Join(names, " ∩ "))
}
