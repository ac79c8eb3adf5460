package hooks

// Names of the core callbacks the site renderer registers. Features
// remove them by name.
const (
	ActionFeedLinks          = "feed_links"
	ActionFeedLinksExtra     = "feed_links_extra"
	ActionEmojiScript        = "print_emoji_detection_script"
	ActionPrintStyles        = "wp_print_styles"
	ActionPrintHeadScripts   = "wp_print_head_scripts"
	ActionPrintFooterScripts = "wp_print_footer_scripts"
	ActionRESTLink           = "rest_output_link_wp_head"
	ActionRESTLinkHeader     = "rest_output_link_header"
	ActionOEmbedDiscovery    = "wp_oembed_add_discovery_links"
	ActionOEmbedHostJS       = "wp_oembed_add_host_js"
	ActionGenerator          = "wp_generator"
	ActionShortlink          = "wp_shortlink_wp_head"
	ActionShortlinkHeader    = "wp_shortlink_header"
	ActionPingbackLink       = "pingback_link"
	ActionEnqueueStyles      = "wp_enqueue_styles"
	ActionGlobalStyles       = "wp_enqueue_global_styles"
	ActionEmojiStyles        = "wp_enqueue_emoji_styles"
	ActionDefaultScripts     = "wp_default_scripts"
	ActionAdminBar           = "admin_bar"
)

// Core asset handles
const (
	HandleGlobalStyles  = "global-styles"
	HandleEmojiStyles   = "wp-emoji-styles"
	HandleDashicons     = "dashicons"
	HandleAdminBar      = "admin-bar"
	HandleBlockLibrary  = "wp-block-library"
	HandleJQuery        = "jquery"
	HandleJQueryCore    = "jquery-core"
	HandleJQueryMigrate = "jquery-migrate"
	HandleHeartbeat     = "heartbeat"
	HandleWPEmbed       = "wp-embed"
)
