// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ReembedTask 描述一次向量补偿任务。
// 上传链路在文件落盘之后失败时投递该任务，由后台消费者
// 幂等地重建（对话, 文件名）对应的全部向量记录与文档元数据。
type ReembedTask struct {
	ChatID     string `json:"chat_id"`
	Filename   string `json:"filename"`
	ObjectPath string `json:"object_path"`
}
