package gmp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"net"
	"strconv"
	"time"

	"scanhub/pkg/cache"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
)

// resolveCacheTTL — время жизни закэшированного имени->ID для
// get_scan_configs/get_scanners. Короткое, поскольку администратор GVM
// может переименовать или пересоздать ресурс в любой момент.
const resolveCacheTTL = 5 * time.Minute

// TLSAdapter соединяется с GVM по GMP (XML поверх TLS) на порту probe-а.
// Аутентификация выполняется сразу после установления TLS-сессии.
type TLSAdapter struct {
	probe   config.ProbeConfig
	resolve cache.Cache // разрешение имя->ID для конфигов/сканеров; может быть nil
}

// NewTLSAdapter создаёт адаптер для одного сконфигурированного probe.
// resolveCache мемоизирует get_scan_configs/get_scanners между вызовами
// CreateTask на этом probe-е; nil отключает кэширование.
func NewTLSAdapter(probe config.ProbeConfig, resolveCache cache.Cache) *TLSAdapter {
	return &TLSAdapter{probe: probe, resolve: resolveCache}
}

// Connect устанавливает TLS-соединение и аутентифицируется, повторяя
// попытку connect до probe.ConnectRetries раз с фиксированной задержкой
// probe.ConnectBackoff между попытками. Операции внутри сессии не
// повторяются — повтор применяется только к самому connect.
func (a *TLSAdapter) Connect(ctx context.Context) (Session, error) {
	var lastErr error

	attempts := a.probe.ConnectRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.probe.ConnectBackoff):
			}
		}

		sess, err := a.connectOnce(ctx)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		logger.Log.Warn("gmp connect attempt failed",
			"probe", a.probe.Name, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("gmp connect exhausted %d attempts: %w", attempts, lastErr)
}

func (a *TLSAdapter) connectOnce(ctx context.Context) (Session, error) {
	dialer := &net.Dialer{Timeout: a.probe.ConnectTimeout}
	tlsConfig := &tls.Config{InsecureSkipVerify: a.probe.InsecureSkipTLS} //nolint:gosec // operator-controlled probe endpoints

	conn, err := tls.DialWithDialer(dialer, "tcp", a.probe.Address(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("tls dial %s: %w", a.probe.Address(), err)
	}

	sess := &tlsSession{conn: conn, decoder: xml.NewDecoder(conn), probeName: a.probe.Name, resolve: a.resolve}

	if _, err := sess.request(ctx, fmt.Sprintf(
		`<authenticate><credentials><username>%s</username><password>%s</password></credentials></authenticate>`,
		escapeXML(a.probe.Username), escapeXML(a.probe.Password),
	)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	return sess, nil
}

// tlsSession — единственная реализация Session, синхронная над одним
// TLS-соединением: запрос пишется, ответ читается тем же декодером до
// следующего закрывающего тега верхнего уровня.
type tlsSession struct {
	conn      net.Conn
	decoder   *xml.Decoder
	probeName string
	resolve   cache.Cache
}

type statusResponse struct {
	XMLName    xml.Name
	Status     string `xml:"status,attr"`
	StatusText string `xml:"status_text,attr"`
	ID         string `xml:"id,attr"`
	ReportID   string `xml:"report_id"`
	Raw        []byte `xml:",innerxml"`
}

func (s *tlsSession) request(ctx context.Context, command string) (*statusResponse, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(deadline)
	}

	if _, err := s.conn.Write([]byte(command)); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var resp statusResponse
	if err := s.decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !isSuccessStatus(resp.Status) {
		return &resp, fmt.Errorf("gmp %s failed: %s %s", resp.XMLName.Local, resp.Status, resp.StatusText)
	}

	return &resp, nil
}

func isSuccessStatus(status string) bool {
	return len(status) > 0 && status[0] == '2'
}

func (s *tlsSession) GetScanners(ctx context.Context) ([]Scanner, error) {
	resp, err := s.request(ctx, `<get_scanners/>`)
	if err != nil {
		return nil, err
	}
	var named namedResourceList
	if err := xml.Unmarshal(wrap(resp.XMLName.Local, resp.Raw), &named); err != nil {
		return nil, fmt.Errorf("parse scanners: %w", err)
	}
	out := make([]Scanner, 0, len(named.Items))
	for _, it := range named.Items {
		out = append(out, Scanner{ID: it.ID, Name: it.Name})
	}
	return out, nil
}

func (s *tlsSession) GetScanConfigs(ctx context.Context) ([]ScanConfig, error) {
	resp, err := s.request(ctx, `<get_configs/>`)
	if err != nil {
		return nil, err
	}
	var named namedResourceList
	if err := xml.Unmarshal(wrap(resp.XMLName.Local, resp.Raw), &named); err != nil {
		return nil, fmt.Errorf("parse scan configs: %w", err)
	}
	out := make([]ScanConfig, 0, len(named.Items))
	for _, it := range named.Items {
		out = append(out, ScanConfig{ID: it.ID, Name: it.Name})
	}
	return out, nil
}

func (s *tlsSession) GetPortLists(ctx context.Context) ([]PortList, error) {
	resp, err := s.request(ctx, `<get_port_lists/>`)
	if err != nil {
		return nil, err
	}
	var named namedResourceList
	if err := xml.Unmarshal(wrap(resp.XMLName.Local, resp.Raw), &named); err != nil {
		return nil, fmt.Errorf("parse port lists: %w", err)
	}
	out := make([]PortList, 0, len(named.Items))
	for _, it := range named.Items {
		out = append(out, PortList{ID: it.ID, Name: it.Name})
	}
	return out, nil
}

func (s *tlsSession) CreatePortList(ctx context.Context, name, tcpPortList string) (string, error) {
	cmd := fmt.Sprintf(`<create_port_list><name>%s</name><port_range>%s</port_range></create_port_list>`,
		escapeXML(name), escapeXML(tcpPortList))
	resp, err := s.request(ctx, cmd)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create_port_list: missing id in response")
	}
	return resp.ID, nil
}

func (s *tlsSession) DeletePortList(ctx context.Context, id string) error {
	_, err := s.request(ctx, fmt.Sprintf(`<delete_port_list port_list_id="%s"/>`, escapeXML(id)))
	return err
}

func (s *tlsSession) CreateTarget(ctx context.Context, opts CreateTargetOptions) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<create_target><name>`)
	buf.WriteString(escapeXML(opts.Name))
	buf.WriteString(`</name><hosts>`)
	buf.WriteString(escapeXML(opts.Hosts))
	buf.WriteString(`</hosts>`)
	switch {
	case opts.PortListID != "":
		fmt.Fprintf(&buf, `<port_list id="%s"/>`, escapeXML(opts.PortListID))
	case opts.DefaultPortListName != "":
		buf.WriteString(`<port_list_name>` + escapeXML(opts.DefaultPortListName) + `</port_list_name>`)
	}
	if opts.AliveTest != "" {
		buf.WriteString(`<alive_tests>` + escapeXML(opts.AliveTest) + `</alive_tests>`)
	}
	buf.WriteString(`</create_target>`)

	resp, err := s.request(ctx, buf.String())
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create_target: missing id in response")
	}
	return resp.ID, nil
}

func (s *tlsSession) DeleteTarget(ctx context.Context, id string) error {
	_, err := s.request(ctx, fmt.Sprintf(`<delete_target target_id="%s"/>`, escapeXML(id)))
	return err
}

func (s *tlsSession) CreateTask(ctx context.Context, opts CreateTaskOptions) (string, error) {
	configID, err := s.resolveOrDefault(ctx, opts.ConfigID, opts.ConfigName, s.GetScanConfigs)
	if err != nil {
		return "", fmt.Errorf("resolve scan config: %w", err)
	}
	scannerID, err := s.resolveScanner(ctx, opts.ScannerID, opts.ScannerName)
	if err != nil {
		return "", fmt.Errorf("resolve scanner: %w", err)
	}

	cmd := fmt.Sprintf(
		`<create_task><name>%s</name><target id="%s"/><config id="%s"/><scanner id="%s"/></create_task>`,
		escapeXML(opts.Name), escapeXML(opts.TargetID), escapeXML(configID), escapeXML(scannerID),
	)
	resp, err := s.request(ctx, cmd)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create_task: missing id in response")
	}
	return resp.ID, nil
}

func (s *tlsSession) resolveOrDefault(ctx context.Context, id, name string, list func(context.Context) ([]ScanConfig, error)) (string, error) {
	if id != "" {
		return id, nil
	}
	key := s.resolveKey("config", name)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return cached, nil
	}
	configs, err := list(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range configs {
		if c.Name == name {
			s.cacheSet(ctx, key, c.ID)
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("scan config %q not found", name)
}

func (s *tlsSession) resolveScanner(ctx context.Context, id, name string) (string, error) {
	if id != "" {
		return id, nil
	}
	key := s.resolveKey("scanner", name)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return cached, nil
	}
	scanners, err := s.GetScanners(ctx)
	if err != nil {
		return "", err
	}
	for _, sc := range scanners {
		if sc.Name == name {
			s.cacheSet(ctx, key, sc.ID)
			return sc.ID, nil
		}
	}
	return "", fmt.Errorf("scanner %q not found", name)
}

// resolveKey строит ключ кэша имя->ID, разделённый по probe-у: одни и те же
// имена на разных GVM-серверах не должны конфликтовать.
func (s *tlsSession) resolveKey(kind, name string) string {
	return fmt.Sprintf("gmp:resolve:%s:%s:%s", s.probeName, kind, name)
}

func (s *tlsSession) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.resolve == nil {
		return "", false
	}
	value, err := s.resolve.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return string(value), true
}

func (s *tlsSession) cacheSet(ctx context.Context, key, id string) {
	if s.resolve == nil {
		return
	}
	if err := s.resolve.Set(ctx, key, []byte(id), resolveCacheTTL); err != nil {
		logger.Log.Warn("gmp resolve cache set failed", "key", key, "error", err)
	}
}

func (s *tlsSession) StartTask(ctx context.Context, id string) (string, error) {
	resp, err := s.request(ctx, fmt.Sprintf(`<start_task task_id="%s"/>`, escapeXML(id)))
	if err != nil {
		return "", err
	}
	if resp.ReportID == "" {
		return "", fmt.Errorf("start_task: missing report_id in response")
	}
	return resp.ReportID, nil
}

func (s *tlsSession) StopTask(ctx context.Context, id string) error {
	_, err := s.request(ctx, fmt.Sprintf(`<stop_task task_id="%s"/>`, escapeXML(id)))
	return err
}

func (s *tlsSession) DeleteTask(ctx context.Context, id string) error {
	_, err := s.request(ctx, fmt.Sprintf(`<delete_task task_id="%s"/>`, escapeXML(id)))
	return err
}

func (s *tlsSession) GetTaskStatus(ctx context.Context, id string) (string, int, error) {
	resp, err := s.request(ctx, fmt.Sprintf(`<get_tasks task_id="%s"/>`, escapeXML(id)))
	if err != nil {
		return "", 0, err
	}

	var task struct {
		Status   string `xml:"task>status"`
		Progress string `xml:"task>progress"`
	}
	if err := xml.Unmarshal(wrap(resp.XMLName.Local, resp.Raw), &task); err != nil {
		return "", 0, fmt.Errorf("parse task status: %w", err)
	}

	progress, _ := strconv.Atoi(task.Progress)
	if progress < 0 {
		progress = 0
	}
	return task.Status, progress, nil
}

func (s *tlsSession) GetReportXML(ctx context.Context, reportID string) (string, error) {
	resp, err := s.request(ctx, fmt.Sprintf(
		`<get_reports report_id="%s" details="1" ignore_pagination="1"/>`, escapeXML(reportID),
	))
	if err != nil {
		return "", err
	}
	return string(resp.Raw), nil
}

func (s *tlsSession) Close() error {
	return s.conn.Close()
}

// namedResourceList разбирает ответы вида <get_X_response><X id="..">
// <name>..</name></X>...</get_X_response> — общая форма для scanners,
// configs и port lists.
type namedResourceList struct {
	Items []namedResource `xml:",any"`
}

type namedResource struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name"`
}

func wrap(elem string, inner []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(elem)
	buf.WriteByte('>')
	buf.Write(inner)
	buf.WriteString("</")
	buf.WriteString(elem)
	buf.WriteByte('>')
	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
