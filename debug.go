package canopy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// debugDumpInterval is how many frames pass between node-tree dumps.
const debugDumpInterval = 16

// debugFrame logs the frame's stats and, periodically, the node tree.
// Only called when the manager is in debug mode.
func (um *UpdateManager) debugFrame(updating bool, keep KeepUpdating) {
	fields := um.logFields(updating, keep)
	fields = append(fields,
		zap.Int("nodes", len(um.nodes)),
		zap.Int("animations", len(um.animations)),
		zap.Int("discard_queue", um.discard.Len()),
	)
	um.logger.Debug("frame", fields...)

	if um.stats.Frames%debugDumpInterval == 0 {
		bufferIndex := um.buffers.GetRenderBufferIndex()
		if um.root != nil {
			um.logger.Debug("scene tree", zap.String("tree", dumpTree(&um.root.Node, bufferIndex)))
		}
		if um.systemRoot != nil {
			um.logger.Debug("system tree", zap.String("tree", dumpTree(&um.systemRoot.Node, bufferIndex)))
		}
	}
}

// dumpTree renders the subtree as indented lines of ID, name, world
// position and visibility.
func dumpTree(n *Node, bufferIndex BufferIndex) string {
	var sb strings.Builder
	writeTree(&sb, n, bufferIndex, 0)
	return sb.String()
}

func writeTree(sb *strings.Builder, n *Node, bufferIndex BufferIndex, depth int) {
	p := n.WorldPosition()
	fmt.Fprintf(sb, "%s%s pos=(%.1f,%.1f,%.1f)", strings.Repeat("  ", depth), n, p[0], p[1], p[2])
	if !n.IsWorldVisible(bufferIndex) {
		sb.WriteString(" hidden")
	}
	sb.WriteByte('\n')
	for _, c := range n.children {
		writeTree(sb, c, bufferIndex, depth+1)
	}
}

// debugMaxTreeDepth is the depth past which connecting a node logs a warning.
const debugMaxTreeDepth = 32

func (um *UpdateManager) debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		um.logger.Warn("tree depth exceeds threshold",
			zap.Int("depth", depth), zap.Int("threshold", debugMaxTreeDepth), zap.Stringer("node", n))
	}
}

// debugMaxChildCount is the child count past which connecting logs a warning.
const debugMaxChildCount = 1000

func (um *UpdateManager) debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		um.logger.Warn("child count exceeds threshold",
			zap.Int("children", len(n.children)), zap.Int("threshold", debugMaxChildCount), zap.Stringer("node", n))
	}
}
