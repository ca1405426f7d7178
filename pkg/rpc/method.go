package rpc

import "sort"

// Method is a JSON-RPC method name understood by the node.
type Method string

const (
	MethodPeerCount             Method = "peerCount"
	MethodBlockNumber           Method = "blockNumber"
	MethodSendRawTransaction    Method = "sendRawTransaction"
	MethodGetBlockByHash        Method = "getBlockByHash"
	MethodGetBlockByNumber      Method = "getBlockByNumber"
	MethodGetTransactionReceipt Method = "getTransactionReceipt"
	MethodGetLogs               Method = "getLogs"
	MethodCall                  Method = "call"
	MethodGetTransaction        Method = "getTransaction"
	MethodGetTransactionCount   Method = "getTransactionCount"
	MethodGetCode               Method = "getCode"
	MethodGetAbi                Method = "getAbi"
	MethodGetBalance            Method = "getBalance"
	MethodNewFilter             Method = "newFilter"
	MethodNewBlockFilter        Method = "newBlockFilter"
	MethodUninstallFilter       Method = "uninstallFilter"
	MethodGetFilterChanges      Method = "getFilterChanges"
	MethodGetFilterLogs         Method = "getFilterLogs"
	MethodGetTransactionProof   Method = "getTransactionProof"
	MethodGetMetaData           Method = "getMetaData"
	MethodGetBlockHeader        Method = "getBlockHeader"
	MethodGetStateProof         Method = "getStateProof"
	MethodGetVersion            Method = "getVersion"
	MethodPeersInfo             Method = "peersInfo"
)

// ResultKind is the shape of a method's result.
type ResultKind int

const (
	KindQuantity ResultKind = iota + 1
	KindData
	KindBool
	KindBlock
	KindReceipt
	KindTransaction
	KindSendingResult
	KindLogs
	KindFilterChanges
	KindMetaData
	KindVersion
	KindPeersInfo
)

var kindNames = map[ResultKind]string{
	KindQuantity:      "quantity",
	KindData:          "data",
	KindBool:          "bool",
	KindBlock:         "block",
	KindReceipt:       "receipt",
	KindTransaction:   "transaction",
	KindSendingResult: "sending result",
	KindLogs:          "logs",
	KindFilterChanges: "filter changes",
	KindMetaData:      "metadata",
	KindVersion:       "version",
	KindPeersInfo:     "peers info",
}

func (k ResultKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

type methodInfo struct {
	arity int
	kind  ResultKind
	// nullable methods answer null when the record does not exist.
	nullable bool
}

var methodTable = map[Method]methodInfo{
	MethodPeerCount:             {arity: 0, kind: KindQuantity},
	MethodBlockNumber:           {arity: 0, kind: KindQuantity},
	MethodSendRawTransaction:    {arity: 1, kind: KindSendingResult},
	MethodGetBlockByHash:        {arity: 2, kind: KindBlock, nullable: true},
	MethodGetBlockByNumber:      {arity: 2, kind: KindBlock, nullable: true},
	MethodGetTransactionReceipt: {arity: 1, kind: KindReceipt, nullable: true},
	MethodGetLogs:               {arity: 1, kind: KindLogs},
	MethodCall:                  {arity: 2, kind: KindData},
	MethodGetTransaction:        {arity: 1, kind: KindTransaction, nullable: true},
	MethodGetTransactionCount:   {arity: 2, kind: KindQuantity},
	MethodGetCode:               {arity: 2, kind: KindData},
	MethodGetAbi:                {arity: 2, kind: KindData},
	MethodGetBalance:            {arity: 2, kind: KindQuantity},
	MethodNewFilter:             {arity: 1, kind: KindQuantity},
	MethodNewBlockFilter:        {arity: 0, kind: KindQuantity},
	MethodUninstallFilter:       {arity: 1, kind: KindBool},
	MethodGetFilterChanges:      {arity: 1, kind: KindFilterChanges},
	MethodGetFilterLogs:         {arity: 1, kind: KindLogs},
	MethodGetTransactionProof:   {arity: 1, kind: KindData},
	MethodGetMetaData:           {arity: 1, kind: KindMetaData},
	MethodGetBlockHeader:        {arity: 1, kind: KindData},
	MethodGetStateProof:         {arity: 3, kind: KindData},
	MethodGetVersion:            {arity: 0, kind: KindVersion},
	MethodPeersInfo:             {arity: 0, kind: KindPeersInfo},
}

// String returns the wire name.
func (m Method) String() string {
	return string(m)
}

// IsKnown reports whether m is in the method table.
func (m Method) IsKnown() bool {
	_, ok := methodTable[m]
	return ok
}

// Arity returns the number of positional parameters m takes.
func (m Method) Arity() (int, bool) {
	info, ok := methodTable[m]
	return info.arity, ok
}

// ResultKind returns the shape of m's result, or 0 for unknown methods.
func (m Method) ResultKind() ResultKind {
	return methodTable[m].kind
}

// Nullable reports whether m answers null for a missing record.
func (m Method) Nullable() bool {
	return methodTable[m].nullable
}

// Methods returns every known method sorted by name.
func Methods() []Method {
	out := make([]Method, 0, len(methodTable))
	for m := range methodTable {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
