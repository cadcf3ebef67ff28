package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitepulse/config"
	"sitepulse/crawler"
	"sitepulse/extract"
	"sitepulse/middleware"
	"sitepulse/monitoring"
)

const (
	auditExtractLinks   = "extract-links"
	auditBrokenLinks    = "check-broken-links"
	auditAnalyzeContent = "analyze-content"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": timestamp(),
	})
}

func (s *Server) extractLinksHandler(c *gin.Context) {
	pageURL, ok := requireURL(c)
	if !ok {
		return
	}
	start := time.Now()

	links, err := s.discoverLinks(c.Request.Context(), pageURL)
	if err != nil {
		s.fail(c, auditExtractLinks, pageURL, start, "Failed to extract links", err)
		return
	}

	internal, external := extract.CountLinks(links)
	s.monitor.RecordExtraction(internal, external)
	s.monitor.RecordAudit(monitoring.AuditRecord{
		Kind:     auditExtractLinks,
		URL:      pageURL,
		At:       time.Now(),
		Duration: time.Since(start),
		Links:    len(links),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     pageURL,
		"data": gin.H{
			"links":         links,
			"totalLinks":    len(links),
			"internalLinks": internal,
			"externalLinks": external,
		},
		"timestamp": timestamp(),
	})
}

func (s *Server) checkBrokenLinksHandler(c *gin.Context) {
	pageURL, ok := requireURL(c)
	if !ok {
		return
	}
	start := time.Now()

	links, err := s.discoverLinks(c.Request.Context(), pageURL)
	if err != nil {
		s.fail(c, auditBrokenLinks, pageURL, start, "Failed to check broken links", err)
		return
	}

	internal, external := extract.CountLinks(links)
	s.monitor.RecordExtraction(internal, external)

	checkStart := time.Now()
	summary := s.verifier.Check(c.Request.Context(), links)
	s.monitor.RecordLinkCheck(summary.TotalChecked(), summary.BrokenCount(), time.Since(checkStart))
	s.monitor.RecordAudit(monitoring.AuditRecord{
		Kind:     auditBrokenLinks,
		URL:      pageURL,
		At:       time.Now(),
		Duration: time.Since(start),
		Links:    summary.TotalDiscoveredLinks,
		Checked:  summary.TotalChecked(),
		Broken:   summary.BrokenCount(),
	})

	s.logger.Info("Broken link check completed",
		zap.String("url", pageURL),
		zap.Int("total_links", summary.TotalDiscoveredLinks),
		zap.Int("checked", summary.TotalChecked()),
		zap.Int("broken", summary.BrokenCount()),
		zap.String("request_id", middleware.GetRequestID(c)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     pageURL,
		"data": gin.H{
			"brokenLinks":  summary.BrokenLinks,
			"totalChecked": summary.TotalChecked(),
			"brokenCount":  summary.BrokenCount(),
			"totalLinks":   summary.TotalDiscoveredLinks,
		},
		"timestamp": timestamp(),
	})
}

func (s *Server) analyzeContentHandler(c *gin.Context) {
	pageURL, ok := requireURL(c)
	if !ok {
		return
	}
	start := time.Now()

	page, err := s.fetchPage(c.Request.Context(), pageURL)
	if err != nil {
		s.fail(c, auditAnalyzeContent, pageURL, start, "Failed to analyze content", err)
		return
	}

	snapshot, err := extract.Snapshot(page.RawBody, pageURL)
	if err != nil {
		s.fail(c, auditAnalyzeContent, pageURL, start, "Failed to analyze content", err)
		return
	}

	analysis, err := s.analyzer.Analyze(c.Request.Context(), snapshot)
	if err != nil {
		s.fail(c, auditAnalyzeContent, pageURL, start, "Failed to analyze content", err)
		return
	}

	s.monitor.RecordAudit(monitoring.AuditRecord{
		Kind:     auditAnalyzeContent,
		URL:      pageURL,
		At:       time.Now(),
		Duration: time.Since(start),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     pageURL,
		"data": gin.H{
			"summary":         analysis.Summary,
			"siteTitle":       analysis.SiteTitle,
			"websitePurpose":  analysis.WebsitePurpose,
			"mainIdea":        analysis.MainIdea,
			"seoTags":         analysis.SeoTags,
			"keywords":        analysis.Keywords,
			"contentAnalysis": analysis.ContentAnalysis,
			"rawContent": gin.H{
				"title":           snapshot.Title,
				"metaDescription": snapshot.MetaDescription,
				"h1Tags":          snapshot.H1Tags,
			},
			"content": snapshot,
		},
		"timestamp": timestamp(),
	})
}

func (s *Server) monitoringStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"monitoring": s.monitor.GetComprehensiveStats(),
		"timestamp":  timestamp(),
	})
}

// discoverLinks fetches pageURL and extracts its links.
func (s *Server) discoverLinks(ctx context.Context, pageURL string) ([]extract.LinkRecord, error) {
	page, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extract.ExtractLinks(page.RawBody, pageURL)
}

func (s *Server) fetchPage(ctx context.Context, pageURL string) (*crawler.PageFetchResult, error) {
	page, err := s.fetcher.Fetch(ctx, pageURL)
	s.monitor.RecordFetch(s.backendName(), err)
	return page, err
}

func (s *Server) backendName() string {
	if s.config.Crawler.Backend == "" {
		return config.BackendHTTP
	}
	return s.config.Crawler.Backend
}

// fail logs err, records the failed audit and writes the 500 response.
func (s *Server) fail(c *gin.Context, kind, pageURL string, start time.Time, message string, err error) {
	s.logger.Error(message,
		zap.String("url", pageURL),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err))

	s.monitor.RecordAudit(monitoring.AuditRecord{
		Kind:     kind,
		URL:      pageURL,
		At:       time.Now(),
		Duration: time.Since(start),
		Error:    err.Error(),
	})

	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   message,
		"message": err.Error(),
	})
}

func requireURL(c *gin.Context) (string, bool) {
	pageURL := c.Query("url")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "URL parameter is required",
		})
		return "", false
	}
	return pageURL, true
}
