// Package listing serves list views: view descriptors, list data fetched
// from backends and rendered through the table engine, and server-side
// filter sessions.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/definition"
	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/filterbar"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/internal/options"
	"github.com/pitabwire/backoffice/internal/table"
	"github.com/pitabwire/backoffice/model"
)

// Fetch outcomes recorded in metrics.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

const (
	defaultPageParam = "page"
	defaultSizeParam = "page_size"
	defaultRowID     = "id"
)

// Deps are the collaborators of a Provider. Logger and Metrics may be nil.
type Deps struct {
	Definitions *definition.Registry
	Invoker     model.OperationInvoker
	Sources     options.Sources
	Services    map[string]config.ServiceConfig
	Listing     config.ListingConfig
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Provider resolves view definitions into descriptors and fetches list
// data.
type Provider struct {
	defs     *definition.Registry
	invoker  model.OperationInvoker
	sources  options.Sources
	services map[string]config.ServiceConfig
	cfg      config.ListingConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewProvider creates a Provider.
func NewProvider(d Deps) *Provider {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Listing.DefaultPageSize <= 0 {
		d.Listing.DefaultPageSize = table.DefaultPageSize
	}
	if d.Listing.MaxPageSize < d.Listing.DefaultPageSize {
		d.Listing.MaxPageSize = d.Listing.DefaultPageSize
	}
	if d.Listing.DefaultLocale == "" {
		d.Listing.DefaultLocale = "en"
	}
	return &Provider{
		defs:     d.Definitions,
		invoker:  d.Invoker,
		sources:  d.Sources,
		services: d.Services,
		cfg:      d.Listing,
		logger:   d.Logger,
		metrics:  d.Metrics,
	}
}

// View returns the definition of a view or a NOT_FOUND error.
func (p *Provider) View(viewID string) (model.ViewDefinition, error) {
	view, ok := p.defs.GetView(viewID)
	if !ok {
		return model.ViewDefinition{}, model.NewNotFoundError(fmt.Sprintf("view %q not found", viewID))
	}
	return view, nil
}

// Resolver creates an option resolver for the view's filter configuration.
func (p *Provider) Resolver(view model.ViewDefinition) *options.Resolver {
	return options.NewResolver(view.Filter, p.sources, p.logger, p.metrics)
}

// GetView resolves the view descriptor. Remote option sets are resolved
// for the view's default values.
func (p *Provider) GetView(ctx context.Context, viewID string) (model.ViewDescriptor, error) {
	view, err := p.View(viewID)
	if err != nil {
		return model.ViewDescriptor{}, err
	}

	bar := filterbar.New(view.Filter, filter.NewUncontrolled(view.Filter.Defaults, nil), p.Resolver(view), filterbar.Hooks{})
	bar.Load(ctx)

	tbl, err := p.table(ctx, view)
	if err != nil {
		return model.ViewDescriptor{}, err
	}

	emptyMessage := view.Table.EmptyMessage
	if emptyMessage == "" {
		emptyMessage = table.DefaultEmptyMessage
	}
	return model.ViewDescriptor{
		ID:        view.ID,
		Title:     view.Title,
		Route:     view.Route,
		FilterBar: bar.Describe(),
		Table: model.TableDescriptor{
			Columns:      tbl.Columns(),
			DataEndpoint: fmt.Sprintf("/ui/views/%s/data", view.ID),
			PageSize:     p.pageSize(view, 0),
			Selectable:   view.Table.Selectable,
			EmptyMessage: emptyMessage,
		},
	}, nil
}

// GetViewData fetches and renders one page of a view for filter values
// owned by the caller, e.g. decoded from the page URL. Missing keys take the
// view's defaults. Backend failures do not produce an error: the response
// carries an empty table and a dismissable notice.
func (p *Provider) GetViewData(ctx context.Context, viewID string, values model.FieldMap, page model.PageRequest) (model.DataResponse, error) {
	view, err := p.View(viewID)
	if err != nil {
		return model.DataResponse{}, err
	}

	merged := view.Filter.Defaults.Clone()
	for k, v := range values {
		merged[k] = v
	}
	return p.fetch(ctx, view, merged, page)
}

// Options resolves the options of one capability. viewID may be empty, in
// which case only the built-in defaults apply as fallback.
func (p *Provider) Options(ctx context.Context, viewID, capability, parent string) (model.OptionsResponse, error) {
	cfg := model.FilterConfig{Filters: map[string]bool{capability: true}}
	if viewID != "" {
		view, err := p.View(viewID)
		if err != nil {
			return model.OptionsResponse{}, err
		}
		cfg = view.Filter
	}

	c, ok := filter.Lookup(capability)
	if !ok || c.Kind != model.ControlSelect {
		return model.OptionsResponse{}, model.NewNotFoundError(fmt.Sprintf("capability %q has no options", capability))
	}

	resolver := options.NewResolver(cfg, p.sources, p.logger, p.metrics)
	records, err := resolver.Resolve(ctx, capability, parent)
	if errors.Is(err, options.ErrCapabilityDisabled) {
		return model.OptionsResponse{}, model.NewBadRequestError(fmt.Sprintf("capability %q is not enabled for view %q", capability, viewID))
	}
	if err != nil {
		return model.OptionsResponse{}, err
	}

	resp := model.OptionsResponse{
		Capability: capability,
		Scope:      parent,
		Options:    make([]model.OptionDescriptor, 0, len(records)),
		Fallback:   resolver.Snapshot(capability).Fallback,
	}
	for _, o := range options.ToOptions(records) {
		resp.Options = append(resp.Options, model.OptionDescriptor{Value: o.Value, Label: o.Label})
	}
	return resp, nil
}

// fetch runs the list operation of view for values and renders the result.
func (p *Provider) fetch(ctx context.Context, view model.ViewDefinition, values model.FieldMap, page model.PageRequest) (resp model.DataResponse, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "listing.fetch", observability.AttrViewID.String(view.ID))
	defer func() { observability.EndSpanWithError(span, err) }()

	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}

	tbl, err := p.table(ctx, view)
	if err != nil {
		return model.DataResponse{}, err
	}

	payload := filter.Payload(view.Filter, values)
	size := p.pageSize(view, page.PageSize)
	number := max(page.Page, 1)
	ds := view.Table.DataSource

	query := make(map[string]string, len(payload)+2)
	for k, v := range payload {
		query[k] = v
	}
	pageParam, sizeParam := p.pageParams(ds.ServiceID)
	query[pageParam] = strconv.Itoa(number)
	query[sizeParam] = strconv.Itoa(size)

	result, invokeErr := p.invoker.Invoke(ctx, model.RequestContextFrom(ctx), ds.Binding(), model.InvocationInput{QueryParams: query})
	if invokeErr == nil && result.StatusCode >= 400 {
		invokeErr = fmt.Errorf("listing: %s returned status %d", ds.OperationID, result.StatusCode)
	}

	resp = model.DataResponse{Payload: payload}
	if invokeErr != nil {
		observability.RequestLogger(ctx, p.logger).Warn("list fetch failed",
			zap.String("view_id", view.ID),
			zap.String("operation_id", ds.OperationID),
			zap.Error(invokeErr),
		)
		p.recordFetch(view.ID, outcomeError, start)
		span.SetAttributes(observability.AttrOutcome.String(outcomeError))
		resp.Table = tbl.Render(nil, table.Paginate(number, size, 0), false)
		resp.Notices = []model.Notice{fetchNotice(view, invokeErr)}
		return resp, nil
	}

	items, total := applyResponseMapping(result, ds.Mapping)
	rows := make([]table.Record, len(items))
	for i, item := range items {
		rows[i] = table.Record(item)
	}
	resp.Table = tbl.Render(rows, table.Paginate(number, size, total), false)

	p.recordFetch(view.ID, outcomeOK, start)
	span.SetAttributes(observability.AttrOutcome.String(outcomeOK))
	return resp, nil
}

func (p *Provider) table(ctx context.Context, view model.ViewDefinition) (*table.Table[table.Record], error) {
	locale := model.RequestContextFrom(ctx).LocaleOr(p.cfg.DefaultLocale)
	cols, err := table.FromDefinitions(view.Table.Columns, Renderers(locale))
	if err != nil {
		return nil, fmt.Errorf("listing: view %s: %w", view.ID, err)
	}
	rowID := view.Table.RowID
	if rowID == "" {
		rowID = defaultRowID
	}
	return table.New(table.Options[table.Record]{
		Columns:      cols,
		RowID:        table.FieldID(rowID),
		EmptyMessage: view.Table.EmptyMessage,
		SkeletonRows: view.Table.SkeletonRows,
		Selectable:   view.Table.Selectable,
	}), nil
}

// pageSize picks the requested size, else the view's, else the configured
// default, capped at the configured maximum.
func (p *Provider) pageSize(view model.ViewDefinition, requested int) int {
	size := requested
	if size <= 0 {
		size = view.Table.PageSize
	}
	if size <= 0 {
		size = p.cfg.DefaultPageSize
	}
	return min(size, p.cfg.MaxPageSize)
}

func (p *Provider) pageParams(serviceID string) (page, size string) {
	page, size = defaultPageParam, defaultSizeParam
	if svc, ok := p.services[serviceID]; ok {
		if svc.Pagination.PageParam != "" {
			page = svc.Pagination.PageParam
		}
		if svc.Pagination.SizeParam != "" {
			size = svc.Pagination.SizeParam
		}
	}
	return page, size
}

func (p *Provider) recordFetch(viewID, outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordListFetch(viewID, outcome, time.Since(start))
	}
}

func fetchNotice(view model.ViewDefinition, err error) model.Notice {
	msg := fmt.Sprintf("%s could not be loaded.", view.Title)
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		msg = fmt.Sprintf("%s could not be loaded: %s", view.Title, strings.TrimSuffix(env.Message, "."))
	}
	return model.Notice{Level: "error", Message: msg, Dismissable: true}
}
