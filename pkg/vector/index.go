// Package vector 提供了基于 Elasticsearch 的向量索引。
// 索引按对话（chat_id）与文件名（filename）打标，支持幂等建索引、
// 批量写入、按对话过滤的相似度检索以及按过滤条件的批量删除。
package vector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ragspace-go/internal/config"
	"ragspace-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// Record 是写入向量索引的一条记录。
type Record struct {
	Vector   []float32 `json:"vector"`
	Text     string    `json:"text"`
	ChatID   string    `json:"chat_id"`
	Filename string    `json:"filename"`
}

// Hit 是检索返回的一条命中，按相似度降序排列。
type Hit struct {
	Text     string
	Filename string
	Score    float64
}

// Index 封装了对单个向量索引的全部操作。
type Index struct {
	client    *elasticsearch.Client
	indexName string
}

// Init 根据配置创建 Elasticsearch 客户端并返回向量索引实例。
func Init(cfg config.ElasticsearchConfig) (*Index, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	return &Index{client: client, indexName: cfg.IndexName}, nil
}

// NewWithClient 使用现有客户端构造索引实例。
func NewWithClient(client *elasticsearch.Client, indexName string) *Index {
	return &Index{client: client, indexName: indexName}
}

// EnsureReady 幂等地确保索引存在：不存在则以给定向量维度和
// cosine 相似度创建，并在 chat_id 与 filename 上建 keyword 过滤字段；
// 已存在视为成功。
func (ix *Index) EnsureReady(ctx context.Context, vectorSize int) error {
	res, err := ix.client.Indices.Exists([]string{ix.indexName}, ix.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查向量索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查向量索引 '%s' 时收到意外的状态码: %d", ix.indexName, res.StatusCode)
		return fmt.Errorf("检查向量索引时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chat_id": { "type": "keyword" },
				"filename": { "type": "keyword" },
				"text": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, vectorSize)

	res, err = ix.client.Indices.Create(
		ix.indexName,
		ix.client.Indices.Create.WithContext(ctx),
		ix.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建向量索引 '%s' 失败: %v", ix.indexName, err)
		return err
	}
	if res.IsError() {
		// 并发创建时可能返回 resource_already_exists，同样视为成功
		if res.StatusCode == http.StatusBadRequest && strings.Contains(res.String(), "resource_already_exists") {
			return nil
		}
		log.Errorf("创建向量索引 '%s' 时 Elasticsearch 返回错误: %s", ix.indexName, res.String())
		return errors.New("创建向量索引时 Elasticsearch 返回错误")
	}

	log.Infof("向量索引 '%s' 创建成功, 维度: %d", ix.indexName, vectorSize)
	return nil
}

// Upsert 以全新的随机标识写入一批记录。
// 重复上传同一文件会产生重复记录，这是预期行为，由删除路径按过滤条件清理。
func (ix *Index) Upsert(ctx context.Context, records []Record) error {
	for i, rec := range records {
		docBytes, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      ix.indexName,
			DocumentID: uuid.NewString(),
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, ix.client)
		if err != nil {
			return fmt.Errorf("写入向量记录 %d 失败: %w", i, err)
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			log.Errorf("索引向量记录到 Elasticsearch 出错: %s", msg)
			return errors.New("failed to index vector record")
		}
		res.Body.Close()
	}
	return nil
}

// Search 返回与查询向量最相近的 limit 条记录，按相似度降序，
// 并过滤到给定对话。无命中时返回空切片而非错误。
func (ix *Index) Search(ctx context.Context, queryVector []float32, chatID string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              limit,
			"num_candidates": limit * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"chat_id": chatID},
			},
		},
		"size": limit,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.indexName),
		ix.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("向 Elasticsearch 发送检索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	// 索引尚不存在时（未上传过任何文档）返回空结果
	if res.StatusCode == http.StatusNotFound {
		return []Hit{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source Record  `json:"_source"`
				Score  float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{
			Text:     h.Source.Text,
			Filename: h.Source.Filename,
			Score:    h.Score,
		})
	}
	return hits, nil
}

// Delete 删除同时匹配对话与文件名的所有记录。
// 不存在的组合删除 0 条，同样视为成功。
func (ix *Index) Delete(ctx context.Context, chatID, filename string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"term": map[string]interface{}{"chat_id": chatID}},
					{"term": map[string]interface{}{"filename": filename}},
				},
			},
		},
	}
	return ix.deleteByQuery(ctx, query)
}

// DeleteByChat 删除对话名下的全部记录，用于对话级联删除。
func (ix *Index) DeleteByChat(ctx context.Context, chatID string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"chat_id": chatID},
		},
	}
	return ix.deleteByQuery(ctx, query)
}

func (ix *Index) deleteByQuery(ctx context.Context, query map[string]interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}
	res, err := ix.client.DeleteByQuery(
		[]string{ix.indexName},
		&buf,
		ix.client.DeleteByQuery.WithContext(ctx),
		ix.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		log.Errorf("删除向量记录失败: %v", err)
		return fmt.Errorf("elasticsearch delete_by_query failed: %w", err)
	}
	defer res.Body.Close()

	// 索引不存在等同于无记录可删
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}
	return nil
}
