// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保图片索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(client, esCfg.IndexName)
}

// 标签与标题使用 ik 中文分词，labels 额外保留 keyword 子字段用于精确过滤。
const imageMapping = `{
	"mappings": {
		"properties": {
			"image_id": { "type": "keyword" },
			"title": { "type": "text", "analyzer": "ik_max_word", "search_analyzer": "ik_smart" },
			"detail": { "type": "text", "analyzer": "ik_max_word", "search_analyzer": "ik_smart" },
			"labels": {
				"type": "text",
				"analyzer": "ik_max_word",
				"search_analyzer": "ik_smart",
				"fields": { "keyword": { "type": "keyword" } }
			},
			"url": { "type": "keyword", "index": false },
			"preview_url": { "type": "keyword", "index": false },
			"show": { "type": "boolean" },
			"del": { "type": "boolean" }
		}
	}
}`

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	created, err := client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(imageMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer created.Body.Close()
	if created.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, created.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// ImageIndex 封装了对图片索引的读写。
type ImageIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewImageIndex 创建一个绑定到指定索引的 ImageIndex。
func NewImageIndex(client *elasticsearch.Client, index string) *ImageIndex {
	return &ImageIndex{client: client, index: index}
}

// IndexImage 写入或覆盖一张图片的文档。
func (i *ImageIndex) IndexImage(ctx context.Context, doc model.ImageDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.ImageID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引图片到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("索引图片 %s 失败: %s", doc.ImageID, res.Status())
	}
	return nil
}

// DeleteImage 删除图片文档，文档不存在时视为成功。
func (i *ImageIndex) DeleteImage(ctx context.Context, imageID string) error {
	req := esapi.DeleteRequest{
		Index:      i.index,
		DocumentID: imageID,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("删除图片文档 %s 失败: %s", imageID, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64             `json:"_score"`
			Source model.ImageDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchImages 在标签、标题和描述中检索未删除的图片。
func (i *ImageIndex) SearchImages(ctx context.Context, query string, size int) ([]model.SearchHit, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"labels^3", "title^2", "detail"},
						},
					},
				},
				"should": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"labels.keyword": map[string]interface{}{"value": query, "boost": 5}},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"del": false}},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("构建搜索请求失败: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("搜索请求返回错误: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}
	hits := make([]model.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.SearchHit{
			ImageID:    h.Source.ImageID,
			Title:      h.Source.Title,
			Labels:     h.Source.Labels,
			PreviewURL: h.Source.PreviewURL,
			Score:      h.Score,
		})
	}
	return hits, nil
}
