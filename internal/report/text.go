package report

import (
	"fmt"
	"io"
	"strings"

	"Go2TraceSpectra/internal/core/model"
)

const (
	ruleWidth = 80
	barWidth  = 50
)

func section(b *strings.Builder, title string) {
	rule := strings.Repeat("=", ruleWidth)
	pad := max((ruleWidth-len(title))/2, 0)
	fmt.Fprintf(b, "\n%s\n%s%s\n%s\n", rule, strings.Repeat(" ", pad), title, rule)
}

func shareBar(percent float64) string {
	n := min(max(int(percent/2), 0), barWidth)
	return strings.Repeat("#", n) + strings.Repeat(".", barWidth-n)
}

// RenderText writes the human-readable form of a report.
func RenderText(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "TRACE DISTRIBUTION REPORT %s\n\n", r.ID)
	fmt.Fprintf(&b, "Generated:          %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source:             %s\n", r.Source)
	if r.Filter != "" {
		fmt.Fprintf(&b, "Filter:             %s\n", r.Filter)
	}
	fmt.Fprintf(&b, "Lines read:         %d\n", r.Totals.TotalLines)
	fmt.Fprintf(&b, "Records parsed:     %d (%d skipped, %d filtered)\n",
		r.Totals.ParsedRecords, r.Totals.SkippedLines, r.Totals.FilteredRecords)
	fmt.Fprintf(&b, "Qualifying packets: %d on port %d\n", r.Totals.QualifyingPackets, r.ServicePort)
	fmt.Fprintf(&b, "Unique connections: %d\n", r.Totals.UniqueConnections)
	if r.Partial {
		fmt.Fprintf(&b, "\nWARNING: processing incomplete, figures cover the consumed prefix only: %s\n", r.Error)
	}

	section(&b, "TRAFFIC DISTRIBUTION")
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "\n  %s (%s:%d):\n", g.Name, strings.Join(g.Addresses, ","), r.ServicePort)
		fmt.Fprintf(&b, "    Packets: %6d (%6.2f%%)\n", g.PacketCount, g.SharePercent)
		fmt.Fprintf(&b, "    Bytes:   %8d\n", g.ByteCount)
		fmt.Fprintf(&b, "    Unique client connections: %d\n", len(g.UniquePeers))
		fmt.Fprintf(&b, "    [%s]\n", shareBar(g.SharePercent))
	}

	section(&b, "TCP CONNECTION ANALYSIS")
	b.WriteString("\nConnection initiations (SYN):\n")
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "  %s: %d\n", g.Name, g.SynCount)
		if g.FirstSyn != "" {
			fmt.Fprintf(&b, "    First SYN at: %s\n", g.FirstSyn)
		}
	}
	b.WriteString("\nFlag distribution:\n")
	for _, k := range model.FlagKinds {
		fmt.Fprintf(&b, "  %-8s %d\n", k, r.FlagCounts[k])
	}

	section(&b, "SIZE SIGNATURES (heuristic)")
	if len(r.Signatures) == 0 {
		b.WriteString("\n  none detected\n")
	} else {
		b.WriteString("\n")
	}
	for _, s := range r.Signatures {
		fmt.Fprintf(&b, "  %-15s (%4d bytes): %d occurrences\n", s.Name, s.Length, s.Count)
	}

	section(&b, "FLOW SAMPLE")
	b.WriteString("\n")
	for i, ev := range r.Sample {
		fmt.Fprintf(&b, "  %2d. [%s] %-13s %-6s %s -> %s (%d bytes)\n",
			i+1, ev.Timestamp, ev.Direction, ev.Group, ev.Src, ev.Dst, ev.Bytes)
	}

	section(&b, "VERDICT")
	switch r.Verdict {
	case VerdictConcentrated:
		fmt.Fprintf(&b, "\n  All attributed traffic (%d packets) went to %s.\n", r.Totals.AttributedPackets, r.ActiveGroups[0])
	case VerdictDistributed:
		fmt.Fprintf(&b, "\n  Traffic was distributed over %s.\n", strings.Join(r.ActiveGroups, ", "))
	default:
		b.WriteString("\n  No traffic was attributed to any endpoint group.\n")
	}
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "    %s: %d packets\n", g.Name, g.PacketCount)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
