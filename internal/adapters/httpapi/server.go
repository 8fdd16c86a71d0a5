// Package httpapi exposes the custody service over JSON HTTP routes.
package httpapi

import (
	"errors"
	"expvar"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"custodycore/internal/blob"
	"custodycore/internal/core"
	"custodycore/internal/export"
	"custodycore/pkg/domain"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the router. Service is required.
type Options struct {
	Service        *core.Service
	Blobs          blob.Store
	Logger         core.Logger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// PublicBaseURL prefixes the signing URL returned for new transactions.
	PublicBaseURL string
}

// Handler serves the custody API.
type Handler struct {
	svc     *core.Service
	blobs   blob.Store
	logger  core.Logger
	baseURL string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	h := &Handler{
		svc:     opts.Service,
		blobs:   opts.Blobs,
		logger:  opts.Logger,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}
	if h.logger == nil {
		h.logger = nopLogger{}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/employees", h.listEmployees)
		api.POST("/employees", h.addEmployee)
		api.GET("/employees/:id", h.getEmployee)
		api.PATCH("/employees/:id", h.updateEmployee)
		api.GET("/employees/:id/transactions", h.employeeTransactions)
		api.GET("/employees/:id/balance", h.employeeBalance)

		api.POST("/transactions", h.createTransaction)

		api.GET("/sign", h.resolveSignature)
		api.POST("/sign", h.sign)
		api.GET("/signatures/pending", h.pendingSignatures)
		api.DELETE("/signatures/:token", h.removeSignature)
		api.DELETE("/signatures", h.removeAllSignatures)

		api.GET("/inventory", h.listInventory)
		api.POST("/inventory", h.addInventoryItem)
		api.GET("/inventory/low-stock", h.lowStock)
		api.GET("/inventory/out-of-stock", h.outOfStock)
		api.GET("/inventory/items/:name", h.getInventoryItem)
		api.GET("/inventory/items/:name/history", h.itemHistory)

		api.GET("/movements", h.listMovements)
		api.POST("/movements/purchases", h.recordPurchase)
		api.POST("/movements/adjustments", h.recordAdjustment)

		api.GET("/reports/:file", h.report)
		api.GET("/document", h.document)
		api.POST("/backups", h.backup)
		api.GET("/backups", h.listBackups)
		api.GET("/backups/:name", h.downloadBackup)
		api.GET("/backups/:name/url", h.backupURL)
		api.DELETE("/backups/:name", h.deleteBackup)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// writeError maps service errors to status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var violation domain.RuleViolationError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.As(err, &violation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, blob.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, blob.ErrUnsupported):
		status = http.StatusNotImplemented
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"driver":           h.svc.Store().Driver(),
		"persist_failures": h.svc.Store().PersistFailures(),
	})
}

func (h *Handler) listEmployees(c *gin.Context) {
	if q, ok := c.GetQuery("q"); ok {
		c.JSON(http.StatusOK, h.svc.SearchEmployees(q))
		return
	}
	c.JSON(http.StatusOK, h.svc.ListEmployees(c.Query("inactive") == "true"))
}

func (h *Handler) addEmployee(c *gin.Context) {
	var in core.EmployeeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.svc.AddEmployee(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) getEmployee(c *gin.Context) {
	e, ok := h.svc.GetEmployee(c.Param("id"))
	if !ok {
		notFound(c, "employee")
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) updateEmployee(c *gin.Context) {
	var upd core.EmployeeUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.UpdateEmployee(c.Request.Context(), c.Param("id"), upd); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) employeeTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetEmployeeTransactions(c.Param("id")))
}

func (h *Handler) employeeBalance(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetEmployeeBalance(c.Param("id")))
}

type transactionRequest struct {
	Type       domain.TransactionType `json:"type"`
	EmployeeID string                 `json:"employeeId" binding:"required"`
	Items      []domain.LineItem      `json:"items"`
	Notes      string                 `json:"notes"`
}

type transactionResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	SignURL     string             `json:"signUrl,omitempty"`
}

func (h *Handler) createTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.CreateTransaction(c.Request.Context(), req.Type, req.EmployeeID, req.Items, req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := transactionResponse{Transaction: t}
	if t.LinkToken != nil {
		resp.SignURL = h.baseURL + "/api/v1/sign?token=" + url.QueryEscape(*t.LinkToken)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) resolveSignature(c *gin.Context) {
	t, ok := h.svc.ResolveSignatureLink(c.Query("token"))
	if !ok {
		notFound(c, "signature link")
		return
	}
	c.JSON(http.StatusOK, t)
}

type signRequest struct {
	Data string `json:"data" binding:"required"`
}

func (h *Handler) sign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, ok, err := h.svc.SignTransaction(c.Request.Context(), c.Query("token"), domain.Signature{Data: req.Data})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusGone, gin.H{"error": "signature link invalid or already used"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) pendingSignatures(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.PendingSignatures())
}

func (h *Handler) removeSignature(c *gin.Context) {
	if err := h.svc.RemoveSignature(c.Request.Context(), c.Param("token")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeAllSignatures(c *gin.Context) {
	if err := h.svc.RemoveAllSignatures(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listInventory(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListInventory())
}

func (h *Handler) addInventoryItem(c *gin.Context) {
	var in core.InventoryItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.svc.AddInventoryItem(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getInventoryItem(c *gin.Context) {
	item, ok := h.svc.GetInventoryItem(c.Param("name"))
	if !ok {
		notFound(c, "item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) itemHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetItemHistory(c.Param("name"), c.Query("size")))
}

func (h *Handler) lowStock(c *gin.Context) {
	threshold, err := intQuery(c, "threshold")
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.GetLowStockItems(threshold))
}

func (h *Handler) outOfStock(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetOutOfStockItems())
}

func (h *Handler) listMovements(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.GetInventoryMovements(limit))
}

func (h *Handler) recordPurchase(c *gin.Context) {
	var in core.PurchaseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.svc.RecordPurchase(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) recordAdjustment(c *gin.Context) {
	var in core.AdjustmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.svc.RecordAdjustment(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// report serves /reports/<name>.<csv|xlsx>.
func (h *Handler) report(c *gin.Context) {
	file := c.Param("file")
	ext := path.Ext(file)
	name := strings.TrimSuffix(file, ext)
	format := export.Format(strings.TrimPrefix(ext, "."))
	if format != export.FormatCSV && format != export.FormatXLSX {
		notFound(c, "report format")
		return
	}
	table, err := export.Build(name, h.svc.Document(), h.svc.LowStockThreshold())
	if err != nil {
		notFound(c, "report")
		return
	}
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+name+"_"+time.Now().Format("2006-01-02")+ext+`"`)
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, table); err != nil {
		h.logger.Error("write report failed", "report", name, "error", err)
	}
}

func (h *Handler) document(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Document())
}

// requireBlobs answers 503 when backups are disabled.
func (h *Handler) requireBlobs(c *gin.Context) bool {
	if h.blobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no blob store configured"})
		return false
	}
	return true
}

func (h *Handler) backup(c *gin.Context) {
	if !h.requireBlobs(c) {
		return
	}
	info, err := h.svc.Backup(c.Request.Context(), h.blobs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *Handler) listBackups(c *gin.Context) {
	if !h.requireBlobs(c) {
		return
	}
	infos, err := h.svc.ListBackups(c.Request.Context(), h.blobs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": infos})
}

func (h *Handler) downloadBackup(c *gin.Context) {
	if !h.requireBlobs(c) {
		return
	}
	info, rc, err := h.svc.OpenBackup(c.Request.Context(), h.blobs, c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer func() { _ = rc.Close() }()
	headers := map[string]string{
		"Content-Disposition": `attachment; filename="` + path.Base(info.Key) + `"`,
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, headers)
}

func (h *Handler) backupURL(c *gin.Context) {
	if !h.requireBlobs(c) {
		return
	}
	expiry := core.DefaultBackupURLExpiry
	if raw := c.Query("expiry"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			badRequest(c, errors.New("expiry must be a positive duration such as 10m"))
			return
		}
		expiry = d
	}
	u, err := h.svc.BackupURL(c.Request.Context(), h.blobs, c.Param("name"), expiry)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u, "expires_in": expiry.String()})
}

func (h *Handler) deleteBackup(c *gin.Context) {
	if !h.requireBlobs(c) {
		return
	}
	existed, err := h.svc.DeleteBackup(c.Request.Context(), h.blobs, c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !existed {
		notFound(c, "backup")
		return
	}
	c.Status(http.StatusNoContent)
}
