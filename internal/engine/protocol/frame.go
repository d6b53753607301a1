package protocol

import (
	"Go2TraceSpectra/internal/core/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// TimestampLayout is the tcpdump time-of-day format used for decoded frames,
// rendered in UTC.
const TimestampLayout = "15:04:05.000000"

// ParseFrame uses gopacket to decode one captured frame into a record.
// Length is the transport payload size, which is what tcpdump prints as
// "length" for TCP and UDP. Frames that are not IPv4 TCP/UDP are Skipped.
func ParseFrame(data []byte, linkType layers.LinkType, ci gopacket.CaptureInfo) ParseResult {
	packet := gopacket.NewPacket(data, linkType, gopacket.Default)

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return skipped("not an IPv4 packet")
	}
	ip := l.(*layers.IPv4)

	rec := model.PacketRecord{
		Timestamp:   ci.Timestamp.UTC().Format(TimestampLayout),
		Source:      model.Endpoint{Host: ip.SrcIP.String()},
		Destination: model.Endpoint{Host: ip.DstIP.String()},
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.Source.Port = int(tcp.SrcPort)
		rec.Destination.Port = int(tcp.DstPort)
		rec.Length = len(tcp.Payload)
		rec.Flags = tcpFlags(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.Source.Port = int(udp.SrcPort)
		rec.Destination.Port = int(udp.DstPort)
		rec.Length = len(udp.Payload)
	} else {
		return skipped("not a TCP or UDP packet")
	}

	return ParseResult{Status: Matched, Record: rec}
}

func tcpFlags(tcp *layers.TCP) model.TCPFlags {
	var f model.TCPFlags
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	return f
}
