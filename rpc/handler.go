package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/harveybc/doin-core/core"
	"github.com/harveybc/doin-core/forkchoice"
	"github.com/harveybc/doin-core/network"
	"github.com/harveybc/doin-core/poo"
	"github.com/harveybc/doin-core/taskqueue"
)

// maxChainBlocksPerPage bounds GET /chain/blocks, per spec.md §6.
const maxChainBlocksPerPage = 50

// Handler holds the dependencies needed to serve the control surface.
type Handler struct {
	nodeID  string
	bc      *core.Blockchain
	fc      *forkchoice.Manager
	engine  *poo.Engine
	tasks   *taskqueue.Queue
	node    *network.Node
	chainID string
}

// NewHandler creates an rpc Handler.
func NewHandler(nodeID string, bc *core.Blockchain, fc *forkchoice.Manager, engine *poo.Engine, tasks *taskqueue.Queue, node *network.Node, chainID string) *Handler {
	return &Handler{nodeID: nodeID, bc: bc, fc: fc, engine: engine, tasks: tasks, node: node, chainID: chainID}
}

type statusBody struct {
	NodeID        string  `json:"node_id"`
	ChainID       string  `json:"chain_id"`
	Height        int64   `json:"height"`
	TipHash       string  `json:"tip_hash"`
	Threshold     float64 `json:"threshold"`
	Mode          string  `json:"mode"`
	SuspectReason string  `json:"suspect_reason,omitempty"`
	MintedSoFar   uint64  `json:"minted_so_far"`
	PeerCount     int     `json:"peer_count"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	body := statusBody{
		NodeID:        h.nodeID,
		ChainID:       h.chainID,
		Height:        h.bc.Height(),
		TipHash:       tipHash(h.bc),
		Threshold:     h.engine.ThresholdValue(),
		Mode:          string(h.fc.Mode()),
		SuspectReason: h.fc.SuspectReason(),
		MintedSoFar:   h.engine.MintedSoFar(),
		PeerCount:     len(h.node.PeerIDs()),
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) chainStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, network.ChainStatus{Height: h.bc.Height(), TipHash: tipHash(h.bc)})
}

func (h *Handler) chainBlocks(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if to < from {
		writeError(w, http.StatusBadRequest, "to must be >= from")
		return
	}
	if to-from+1 > maxChainBlocksPerPage {
		to = from + maxChainBlocksPerPage - 1
	}
	blocks := make([]*core.Block, 0, to-from+1)
	for i := from; i <= to; i++ {
		b, err := h.bc.GetBlockByHeight(i)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *Handler) chainBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(r.PathValue("index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "index: "+err.Error())
		return
	}
	block, err := h.bc.GetBlockByHeight(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}

type claimRequest struct {
	TaskID    string `json:"task_id"`
	Claimant  string `json:"claimant"`
	Height    int64  `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) tasksClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, ok := h.tasks.Claim(req.TaskID, req.Claimant, req.Height, req.Timestamp)
	if !ok {
		writeError(w, http.StatusConflict, "task not claimable")
		return
	}
	if data, err := json.Marshal(network.TaskClaimedPayload{TaskID: req.TaskID, Claimant: req.Claimant, Timestamp: req.Timestamp}); err == nil {
		h.node.Flood(network.MsgTaskClaimed, data)
	}
	writeJSON(w, http.StatusOK, task)
}

type completeRequest struct {
	TaskID     string `json:"task_id"`
	ResultHash string `json:"result_hash"`
}

func (h *Handler) tasksComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, ok := h.tasks.Complete(req.TaskID)
	if !ok {
		writeError(w, http.StatusConflict, "task not completable")
		return
	}
	if data, err := json.Marshal(network.TaskCompletedPayload{TaskID: req.TaskID, ResultHash: req.ResultHash}); err == nil {
		h.node.Flood(network.MsgTaskCompleted, data)
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) peers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.node.PeerIDs())
}

// clearSuspect is the operator-intervention endpoint spec.md §4.9/§8
// requires to resume progress after an external-anchor divergence: it is
// gated by the same bearer-token auth as every other route, so only
// whoever holds the node's RPC credential can clear the latch.
func (h *Handler) clearSuspect(w http.ResponseWriter, r *http.Request) {
	h.fc.ClearSuspect()
	writeJSON(w, http.StatusOK, statusBody{Mode: string(h.fc.Mode())})
}

func tipHash(bc *core.Blockchain) string {
	tip := bc.Tip()
	if tip == nil {
		return ""
	}
	return tip.BlockHash
}
