package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//
// 用于生成积分流水号，保证全局唯一且趋势递增。
// ============================================================================

const maxWorkerID = -1 ^ (-1 << 10)

var (
	defaultNode *snowflake.Node
	defaultMu   sync.Mutex
)

// NewNode 创建生成器节点，workerID 取值 0-1023
func NewNode(workerID int64) (*snowflake.Node, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID must be between 0 and %d", maxWorkerID)
	}
	return snowflake.NewNode(workerID)
}

// Init 设置默认生成器的 workerID
func Init(workerID int64) error {
	node, err := NewNode(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultNode = node
	defaultMu.Unlock()
	return nil
}

// NextID 使用默认生成器生成ID，未初始化时使用 workerID = 1
func NextID() int64 {
	defaultMu.Lock()
	if defaultNode == nil {
		defaultNode, _ = snowflake.NewNode(1)
	}
	node := defaultNode
	defaultMu.Unlock()
	return node.Generate().Int64()
}

// GenerateTransactionNo 生成积分流水号
// 格式：PNT + 雪花ID，例如 PNT1234567890123456
func GenerateTransactionNo() string {
	return fmt.Sprintf("PNT%d", NextID())
}
