package combine

import "strings"

// EventKey identifies an event for rule matching: the source pattern and the
// event name, both trimmed and lower-cased.
type EventKey struct {
	Pattern string
	Event   string
}

// EventRef is a rule's reference to one pattern event.
type EventRef struct {
	Pattern string `json:"pattern"`
	Event   string `json:"event"`
}

// Key returns the normalized lookup key for the reference.
func (r EventRef) Key() EventKey {
	return EventKey{Pattern: normalize(r.Pattern), Event: normalize(r.Event)}
}

// String returns "Pattern.event".
func (r EventRef) String() string {
	return r.Pattern + "." + r.Event
}

// Rule merges the referenced events into one event named OutputName.
type Rule struct {
	OutputName string     `json:"output_name"`
	Refs       []EventRef `json:"refs"`
}

// ruleTable is the process-wide combination table. It is never modified;
// Rules hands out copies.
var ruleTable = [...]Rule{
	{
		OutputName: "creating_Pkt",
		Refs: []EventRef{
			{Pattern: "PPacket", Event: "creating_Pkt"},
			{Pattern: "PNDBuffer", Event: "record_ndBuff"},
		},
	},
	{
		OutputName: "start_tx",
		Refs: []EventRef{
			{Pattern: "PSend", Event: "start_tx"},
			{Pattern: "PNDBuffer", Event: "remove_ndBuff"},
			{Pattern: "PPacket", Event: "set_pktFwdr"},
		},
	},
	{
		OutputName: "receive",
		Refs: []EventRef{
			{Pattern: "PReceive", Event: "receive"},
			{Pattern: "PSend", Event: "remove_ctlNeighbours"},
		},
	},
	{
		OutputName: "fwdr_receive_pkts",
		Refs: []EventRef{
			{Pattern: "PReceive", Event: "fwdr_receive_pkts"},
			{Pattern: "PNDBuffer", Event: "record_ndBuff"},
		},
	},
	{
		OutputName: "dest_recv_pkts",
		Refs: []EventRef{
			{Pattern: "PReceive", Event: "dest_recv_pkts"},
			{Pattern: "PDestBuffer", Event: "record_destBuff"},
		},
	},
	{
		OutputName: "finish_tx_pkts",
		Refs: []EventRef{
			{Pattern: "PSend", Event: "finish_tx_pkts"},
			{Pattern: "PNDBuffer", Event: "is_In_Range_ndBuff"},
		},
	},
	{
		OutputName: "final_tx_pkts",
		Refs: []EventRef{
			{Pattern: "PSend", Event: "final_tx_pkts"},
			{Pattern: "PNDBuffer", Event: "isNot_In_Range_ndBuff"},
		},
	},
}

// Rules returns a copy of the combination table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(ruleTable))
	for i, r := range ruleTable {
		out[i] = Rule{
			OutputName: r.OutputName,
			Refs:       append([]EventRef(nil), r.Refs...),
		}
	}
	return out
}

// normalize trims and lower-cases a key component.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
