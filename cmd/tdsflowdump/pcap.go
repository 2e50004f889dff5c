package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/ha1tch/tdsflow/tdsflow"
)

// flowKeyFor builds a direction-independent flow identity from an IP/TCP
// packet's 4-tuple, plus the direction (0 or 1) of this particular packet
// relative to the lexicographically smaller endpoint.
func flowKeyFor(srcIP, dstIP string, srcPort, dstPort uint16) (tdsflow.FlowKey, int) {
	a := fmt.Sprintf("%s:%d", srcIP, srcPort)
	b := fmt.Sprintf("%s:%d", dstIP, dstPort)
	if a < b {
		return tdsflow.FlowKey(a + "-" + b), 0
	}
	return tdsflow.FlowKey(b + "-" + a), 1
}

// tdsPort is the well-known TDS port; packets to/from any other port are
// ignored. A future version could make this configurable for non-standard
// deployments.
const tdsPort = 1433

// readPcap replays an offline capture through ft, calling onEvent for
// every emitted SqlEvent. It reassembles at the TDS application layer via
// FlowState.Dispatch; it does not perform TCP-level out-of-order
// reassembly (spec's Non-goals: traffic is assumed delivered in capture
// order, which holds for most offline single-interface pcaps but not for
// captures merged from multiple taps).
func readPcap(path string, ft *tdsflow.FlowTable, conv *tdsflow.UCS2Converter, onEvent func(*tdsflow.SqlEvent)) error {
	f, err := openPcapReader(path)
	if err != nil {
		return err
	}
	defer f.Close()

	source := gopacket.NewPacketSource(f.handle, f.linkType)
	for packet := range source.Packets() {
		processPacket(packet, ft, conv, onEvent)
	}
	return nil
}

func processPacket(packet gopacket.Packet, ft *tdsflow.FlowTable, conv *tdsflow.UCS2Converter, onEvent func(*tdsflow.SqlEvent)) {
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)
	if tcp.SrcPort != tdsPort && tcp.DstPort != tdsPort {
		return
	}
	if len(tcp.Payload) == 0 {
		return
	}

	var srcIP, dstIP string
	if ip4 := packet.Layer(layers.LayerTypeIPv4); ip4 != nil {
		v := ip4.(*layers.IPv4)
		srcIP, dstIP = v.SrcIP.String(), v.DstIP.String()
	} else if ip6 := packet.Layer(layers.LayerTypeIPv6); ip6 != nil {
		v := ip6.(*layers.IPv6)
		srcIP, dstIP = v.SrcIP.String(), v.DstIP.String()
	} else {
		return
	}

	key, dir := flowKeyFor(srcIP, dstIP, uint16(tcp.SrcPort), uint16(tcp.DstPort))

	hdr, st := tdsflow.ParseHeader(tcp.Payload)
	if st != tdsflow.Ok {
		return
	}
	payload := tcp.Payload[tdsflow.HeaderSize:]
	if len(payload) > hdr.PayloadLength() {
		payload = payload[:hdr.PayloadLength()]
	}

	ts := packet.Metadata().Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	ev := ft.Dispatch(key, func(fs *tdsflow.FlowState) *tdsflow.SqlEvent {
		return fs.Dispatch(tdsflow.PacketInput{
			Direction: dir,
			Payload:   payload,
			WireLen:   len(payload),
			Header: tdsflow.PacketHeaderInfo{
				Type:    hdr.Type,
				EOM:     hdr.IsLastPacket(),
				FirstTS: ts,
			},
			Now: ts,
		}, conv)
	})
	if ev != nil {
		onEvent(ev)
	}
}

// pcapReader wraps an offline pcap or pcapng file reader behind the
// gopacket.PacketDataSource interface gopacket's packet source needs.
type pcapReader struct {
	handle   gopacket.PacketDataSource
	linkType layers.LinkType
	closeFn  func() error
}

func (r *pcapReader) Close() error {
	if r.closeFn != nil {
		return r.closeFn()
	}
	return nil
}

func openPcapReader(path string) (*pcapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		// Not a classic pcap file: rewind and try pcapng.
		if _, serr := f.Seek(0, 0); serr != nil {
			f.Close()
			return nil, serr
		}
		ng, nerr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
		if nerr != nil {
			f.Close()
			return nil, err
		}
		return &pcapReader{handle: ng, linkType: ng.LinkType(), closeFn: f.Close}, nil
	}
	return &pcapReader{
		handle:   r,
		linkType: r.LinkType(),
		closeFn:  f.Close,
	}, nil
}
