package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/pkg/events"
)

// Cell renders a value for a table cell.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// EventsToTableData lays out events one per row. Wide adds the source
// system, location, operators and informational text.
func EventsToTableData(list []events.Event, wide bool) Data {
	headers := []string{"ID", "Category", "State", "Source State", "Designation", "Created"}
	if wide {
		headers = append(headers, "System", "Location", "In Process By", "Text")
	}

	d := Data{Headers: headers}
	for _, ev := range list {
		category := ev.CategoryDescriptor
		if category == "" {
			category = strconv.Itoa(ev.CategoryID)
		}
		state := ev.State
		if ev.ClosedForFilter {
			state += " (filtered)"
		}
		row := []string{
			ev.ID,
			category,
			state,
			ev.SrcState,
			ev.SrcDesignation,
			ev.CreationTime,
		}
		if wide {
			system := ev.SrcSystemName
			if system == "" {
				system = strconv.Itoa(ev.SrcSystemID)
			}
			row = append(row, system, ev.SrcLocation, Cell(ev.InProcessBy), ev.InformationalText)
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

// WriteBatch writes one subscription batch. Tables get a heading line
// that tells realigned views from incremental updates.
func WriteBatch(w io.Writer, format Format, batch wsi.EventBatch) error {
	if !format.IsTable() {
		if format == FormatYAML {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		return NewFormatter(format).Format(w, batch)
	}

	kind := "update"
	if batch.Realigned {
		kind = "full view"
	}
	if _, err := fmt.Fprintf(w, "# %s, %d events\n", kind, len(batch.Events)); err != nil {
		return err
	}
	if len(batch.Events) == 0 {
		return nil
	}
	return NewFormatter(format).Format(w, EventsToTableData(batch.Events, format == FormatWide))
}
