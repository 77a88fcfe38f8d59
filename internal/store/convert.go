package store

import (
	"strconv"
	"strings"

	cloudflare "github.com/cloudflare/cloudflare-go"

	"zonekeeper/internal/records"
)

func toCreateParams(f records.Fields, comment string) cloudflare.CreateDNSRecordParams {
	params := cloudflare.CreateDNSRecordParams{
		Type:     string(f.Type),
		Name:     f.Name,
		Content:  f.Content,
		Priority: records.CopyUint16(f.Priority),
		TTL:      f.TTL,
		Proxied:  records.CopyBool(f.Proxied),
		Comment:  comment,
	}
	if f.SRV != nil {
		params.Content = ""
		params.Priority = nil
		params.Data = srvData(*f.SRV)
	}
	return params
}

func toUpdateParams(id string, f records.Fields, comment string) cloudflare.UpdateDNSRecordParams {
	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}
	params := cloudflare.UpdateDNSRecordParams{
		ID:       id,
		Type:     string(f.Type),
		Name:     f.Name,
		Content:  f.Content,
		Priority: records.CopyUint16(f.Priority),
		TTL:      f.TTL,
		Proxied:  records.CopyBool(f.Proxied),
		Comment:  commentPtr,
	}
	if f.SRV != nil {
		params.Content = ""
		params.Priority = nil
		params.Data = srvData(*f.SRV)
	}
	return params
}

func srvData(d records.SRVData) map[string]any {
	return map[string]any{
		"priority": d.Priority,
		"weight":   d.Weight,
		"port":     d.Port,
		"target":   d.Target,
	}
}

func fromAPIRecord(rec cloudflare.DNSRecord) records.Record {
	out := records.Record{
		ID:       rec.ID,
		Type:     records.Type(strings.ToUpper(rec.Type)),
		Name:     records.NormalizeName(rec.Name),
		Content:  rec.Content,
		TTL:      rec.TTL,
		Priority: records.CopyUint16(rec.Priority),
		Proxied:  records.CopyBool(rec.Proxied),
		Comment:  rec.Comment,
	}
	if out.Type == records.TypeSRV {
		out.SRV = parseSRV(rec)
	}
	return out
}

// parseSRV reads structured SRV data from the data object, falling back to
// the "weight port target" content form.
func parseSRV(rec cloudflare.DNSRecord) *records.SRVData {
	data := &records.SRVData{}
	if rec.Priority != nil {
		data.Priority = *rec.Priority
	}
	if m, ok := rec.Data.(map[string]any); ok && len(m) > 0 {
		data.Service = stringField(m, "service")
		data.Proto = stringField(m, "proto")
		data.Name = stringField(m, "name")
		data.Target = records.NormalizeName(stringField(m, "target"))
		if v, ok := uintField(m, "priority"); ok {
			data.Priority = v
		}
		if v, ok := uintField(m, "weight"); ok {
			data.Weight = v
		}
		if v, ok := uintField(m, "port"); ok {
			data.Port = v
		}
		return data
	}
	fields := strings.Fields(rec.Content)
	if len(fields) == 4 {
		if v, err := strconv.ParseUint(fields[0], 10, 16); err == nil {
			data.Priority = uint16(v)
		}
		fields = fields[1:]
	}
	if len(fields) != 3 {
		return nil
	}
	weight, errW := strconv.ParseUint(fields[0], 10, 16)
	port, errP := strconv.ParseUint(fields[1], 10, 16)
	if errW != nil || errP != nil {
		return nil
	}
	data.Weight = uint16(weight)
	data.Port = uint16(port)
	data.Target = records.NormalizeName(fields[2])
	return data
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func uintField(m map[string]any, key string) (uint16, bool) {
	switch v := m[key].(type) {
	case float64:
		return uint16(v), true
	case int:
		return uint16(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 16)
		return uint16(n), err == nil
	default:
		return 0, false
	}
}
