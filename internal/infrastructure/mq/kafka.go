package mq

import (
	"fmt"
	"log"

	"pointsystem/internal/config"

	"github.com/IBM/sarama"
)

// Producer 同步发送 Kafka 消息
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer 包装已有的 SyncProducer，测试中传入 mocks.SyncProducer
func NewProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// InitKafka 创建 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	// 同一 key 的消息保持顺序
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	kafkaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Println("[Kafka] 生产者创建成功")
	return NewProducer(producer), nil
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
