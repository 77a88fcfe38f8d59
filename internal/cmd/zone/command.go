package zone

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"zonekeeper/internal/catalog"
)

var Cmd = &cobra.Command{
	Use:   "zone",
	Short: "Audit and converge DNS zones on the standard configuration",
	Long: `Audit Cloudflare DNS zones against the standard configuration and converge them on it.

Use 'audit' to check compliance, 'plan' to preview what 'enforce' would change and
'enforce' to apply it (with --dry-run for safety). 'list', 'get', 'set' and 'remove'
manage single records. Credentials are tried in order until one can see the zone.`,
}

var auditCmd = &cobra.Command{
	Use:   "audit [zone...]",
	Short: "Check zones against the compliance checklist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAudit,
}

var planCmd = &cobra.Command{
	Use:   "plan [zone]",
	Short: "Show what enforce would change in a zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var enforceCmd = &cobra.Command{
	Use:   "enforce [zone]",
	Short: "Converge a zone on the standard configuration (supports dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnforce,
}

var listCmd = &cobra.Command{
	Use:   "list [zone]",
	Short: "List the records of a zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get [zone]",
	Short: "Show the single record matching the filter",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set [zone]",
	Short: "Create or update one record (supports dry-run)",
	Long: `Create or update one record through the same planner enforce uses.

A, AAAA and CNAME records replace the record of that type and name; MX and TXT
records are added next to existing ones unless --policy says otherwise.
--tag merges one tag into the TXT tag list whose leading tag matches --content:

  zonekeeper zone set example.org --type TXT --name _dmarc \
    --content "v=DMARC1; p=none" --tag rua --tag-value mailto:dmarc@example.org --tag-mode include`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var removeCmd = &cobra.Command{
	Use:   "remove [zone]",
	Short: "Delete records matching the filter (supports dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [host...]",
	Short: "Find the zone and credential that own each host",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var verifyTokenCmd = &cobra.Command{
	Use:   "verify-token",
	Short: "Verify every configured Cloudflare token",
	Args:  cobra.NoArgs,
	RunE:  runVerifyToken,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the catalog enforce converges on",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [zone]",
	Short: "List inventory snapshots taken before writes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshots,
}

var showSnapshotCmd = &cobra.Command{
	Use:   "show [key|path]",
	Short: "Print one inventory snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowSnapshot,
}

func init() {
	if envPath := findEnvArg(os.Args); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	Cmd.PersistentFlags().String("env", "", "Path to .env file to load before executing")
	Cmd.PersistentFlags().StringArray("token", nil, "Cloudflare API token as label=token or token, repeatable (env: "+envTokens+", "+envDNSOnlyToken+", "+envToken+")")
	Cmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Timeout for the whole operation")
	Cmd.PersistentFlags().Int("page-size", 100, "Records requested per list page")
	Cmd.PersistentFlags().Float64("rate-limit", 0, "Maximum Cloudflare requests per second (0 = client default)")
	Cmd.PersistentFlags().String("api-url", getEnvWithDefault("CLOUDFLARE_API_URL", ""), "Cloudflare API base URL (env: CLOUDFLARE_API_URL)")
	Cmd.PersistentFlags().String("record-comment", "", "Comment stamped on records zonekeeper writes")
	Cmd.PersistentFlags().String("format", "text", "Output format: text, json or yaml")

	Cmd.AddCommand(auditCmd)
	Cmd.AddCommand(planCmd)
	Cmd.AddCommand(enforceCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(verifyTokenCmd)
	Cmd.AddCommand(catalogCmd)
	Cmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(showSnapshotCmd)

	initAuditFlags()
	initCatalogFlags(planCmd)
	initCatalogFlags(enforceCmd)
	initCatalogFlags(catalogCmd)
	initWriteFlags(enforceCmd)
	initWriteFlags(setCmd)
	initWriteFlags(removeCmd)
	initFilterFlags(listCmd)
	initFilterFlags(getCmd)
	initFilterFlags(removeCmd)
	initSetFlags()
	initSnapshotStorageFlags(snapshotsCmd)
	initSnapshotStorageFlags(showSnapshotCmd)

	planCmd.Flags().String("output", "", "Optional path to save the plan (json or yaml by extension)")
	removeCmd.Flags().Bool("all", false, "Remove every matching record instead of refusing when several match")
	verifyTokenCmd.Flags().Bool("zones", false, "Also list the zones each token can see")
	catalogCmd.Flags().String("zone", "", "Bind the catalog to a zone and print absolute names")
	snapshotsCmd.Flags().Int("limit", 20, "Maximum number of snapshots to list")
}

func initAuditFlags() {
	auditCmd.Flags().Bool("skip-ipv6", false, "Do not check the GitHub Pages AAAA records")
	auditCmd.Flags().Bool("skip-srv", false, "Do not check the Microsoft 365 federation SRV records")
	auditCmd.Flags().Bool("inventory", true, "Include the A, AAAA, CNAME and MX inventory in the report")
}

func initCatalogFlags(c *cobra.Command) {
	c.Flags().String("catalog", "", "Path to a catalog file (yaml or json); defaults to the built-in standard")
	c.Flags().String("mx-host", getEnvWithDefault("ZONEKEEPER_MX_HOST", catalog.DefaultMXHost), "Exchange Online MX host; {zone} and {zone_dashed} are replaced")
	c.Flags().String("dmarc-rua", getEnvWithDefault("ZONEKEEPER_DMARC_RUA", catalog.DefaultDMARCReport), "DMARC aggregate report address")
	c.Flags().String("pages-host", getEnvWithDefault("ZONEKEEPER_PAGES_HOST", catalog.DefaultPagesHost), "GitHub Pages host for the www alias; {zone} is replaced")
	c.Flags().Bool("skip-ipv6", false, "Leave the GitHub Pages AAAA records out of the catalog")
	c.Flags().Bool("skip-srv", false, "Leave the Microsoft 365 federation SRV records out of the catalog")
}

func initWriteFlags(c *cobra.Command) {
	c.Flags().Bool("dry-run", false, "Show what would change without writing")
	c.Flags().Bool("yes", false, "Do not ask for confirmation before writing")
	c.Flags().Bool("snapshot", getEnvBoolWithDefault("ZONEKEEPER_SNAPSHOT", false), "Archive the zone inventory before the first write")
	initSnapshotStorageFlags(c)
}

func initSnapshotStorageFlags(c *cobra.Command) {
	c.Flags().String("snapshot-dir", getEnvWithDefault("ZONEKEEPER_SNAPSHOT_DIR", ""), "Directory for inventory snapshots (takes precedence over Minio)")
	c.Flags().String("snapshot-format", "json", "Snapshot format: json or yaml")
	c.Flags().String("minio-endpoint", getEnvWithDefault("MINIO_ENDPOINT", ""), "Minio endpoint (env: MINIO_ENDPOINT)")
	c.Flags().String("minio-access-key", getEnvWithDefault("MINIO_ACCESS_KEY", ""), "Minio access key (env: MINIO_ACCESS_KEY)")
	c.Flags().String("minio-secret-key", getEnvWithDefault("MINIO_SECRET_KEY", ""), "Minio secret key (env: MINIO_SECRET_KEY)")
	c.Flags().String("minio-bucket", defaultSnapshotBucket(), "Minio bucket (env: MINIO_BUCKET, overrides with MINIO_DNS_BUCKET)")
	c.Flags().Bool("minio-ssl", getEnvBoolWithDefault("MINIO_SSL", true), "Use SSL for Minio (env: MINIO_SSL)")
	c.Flags().String("bucket-path", getEnvWithDefault("MINIO_BUCKET_PATH", ""), "Path prefix in bucket (env: MINIO_BUCKET_PATH)")
	c.Flags().Duration("minio-http-timeout", 0, "Minio HTTP timeout")
}

func initFilterFlags(c *cobra.Command) {
	c.Flags().String("id", "", "Record identifier")
	c.Flags().String("type", "", "Record type (A, AAAA, CNAME, MX, TXT, SRV)")
	c.Flags().String("name", "", "Record name, relative to the zone or absolute (@ for the apex)")
	c.Flags().String("content", "", "Record content")
}

func initSetFlags() {
	setCmd.Flags().String("type", "", "Record type (A, AAAA, CNAME, MX, TXT)")
	setCmd.Flags().String("name", "", "Record name, relative to the zone or absolute (@ for the apex)")
	setCmd.Flags().String("content", "", "Record content")
	setCmd.Flags().Int("ttl", 1, "TTL in seconds (1 = automatic)")
	setCmd.Flags().Bool("proxied", false, "Proxy the record through Cloudflare (A, AAAA, CNAME)")
	setCmd.Flags().Int("priority", 10, "MX priority")
	setCmd.Flags().String("policy", "", "Override the policy: exclusive, additive or merge")
	setCmd.Flags().String("tag", "", "Tag to merge into a TXT tag list such as DMARC (implies --policy merge)")
	setCmd.Flags().String("tag-value", "", "Required value of --tag")
	setCmd.Flags().String("tag-mode", "set", "How --tag-value is merged: set replaces the value, include adds it to a comma-separated list")
	_ = setCmd.MarkFlagRequired("type")
	_ = setCmd.MarkFlagRequired("name")
	_ = setCmd.MarkFlagRequired("content")
}

func defaultSnapshotBucket() string {
	if bucket := os.Getenv("MINIO_DNS_BUCKET"); bucket != "" {
		return bucket
	}
	return getEnvWithDefault("MINIO_BUCKET", "backups")
}
