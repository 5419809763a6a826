package ui

import (
	"embed"
	"net/http"

	"github.com/KSBMR/VieoDownloader/internal/config"
)

//go:embed assets
var Assets embed.FS

type TemplateHandler struct {
	config *config.Config
}

func NewTemplateHandler(cfg *config.Config) *TemplateHandler {
	return &TemplateHandler{config: cfg}
}

func (th *TemplateHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>VieoDownloader - paste a link, get the video</title>
    <link rel="stylesheet" href="/assets/css/app.css">
    <script src="https://unpkg.com/vue@3/dist/vue.global.js"></script>
    <style>
        .fade-enter-active, .fade-leave-active {
            transition: opacity 0.2s ease;
        }
        .fade-enter-from, .fade-leave-to {
            opacity: 0;
        }
    </style>
</head>
<body>
<div id="app">
    <header class="app-header">
        <div class="container">
            <h1 class="app-title">
                VieoDownloader
                <small>paste a link, get the video</small>
            </h1>
            <div class="header-actions">
                <span class="conn-dot" :class="{ online: isConnected }" :title="isConnected ? 'Connected' : 'Disconnected'"></span>
                <button class="icon-btn" @click="toggleDarkMode" :title="isDarkMode ? 'Light mode' : 'Dark mode'">
                    <span v-if="isDarkMode">&#9728;</span>
                    <span v-else>&#127769;</span>
                </button>
                <button class="icon-btn" @click="openSettings" title="Settings">&#9881;</button>
            </div>
        </div>
    </header>

    <main class="container">
        <div v-if="demoMode" class="demo-banner">
            Demo mode is on: links resolve to generated sample metadata and transfers are simulated.
        </div>

        <!-- Link input -->
        <div class="card">
            <h2>Grab a video</h2>
            <div class="url-row">
                <input
                    v-model="url"
                    @keyup.enter="analyze"
                    :disabled="analyzeState === 'analyzing'"
                    class="url-input"
                    type="text"
                    placeholder="Paste a video link, e.g. https://www.youtube.com/watch?v=...">
                <button class="btn" @click="analyze" :disabled="analyzeState === 'analyzing' || !url.trim()">
                    <span v-if="analyzeState === 'analyzing'">Analyzing...</span>
                    <span v-else>Analyze</span>
                </button>
            </div>
            <div class="chip-row">
                <button v-for="p in platforms" :key="p.id" class="chip" @click="useExample(p)" :title="'Try a ' + p.name + ' link'">
                    {{ p.name }}
                </button>
            </div>
            <div v-if="analyzeState === 'analyzing'" class="analyzing-row">
                <span class="spinner"></span>
                <span>Looking up the link, trying each source in turn...</span>
            </div>
        </div>

        <!-- Resolved metadata and format picker -->
        <div v-if="analyzeState === 'ready' && mediaInfo" class="card">
            <div class="media-card">
                <img v-if="mediaInfo.thumbnail" class="media-thumb" :src="mediaInfo.thumbnail" alt="thumbnail">
                <div class="media-meta">
                    <h3>{{ mediaInfo.title }}</h3>
                    <div class="media-sub">
                        <span v-if="mediaInfo.uploader">{{ mediaInfo.uploader }} &middot; </span>
                        <span v-if="mediaInfo.duration_seconds">{{ formatDuration(mediaInfo.duration_seconds) }} &middot; </span>
                        <span>{{ mediaInfo.platform }}</span>
                    </div>
                    <div>
                        <span class="badge badge-source">via {{ mediaInfo.source }}</span>
                        <span v-if="mediaInfo.demo" class="badge badge-demo">demo data</span>
                    </div>
                    <div v-if="mediaInfo.warnings && mediaInfo.warnings.length" class="warning-list">
                        Some sources could not resolve this link:
                        <ul>
                            <li v-for="warning in mediaInfo.warnings" :key="warning">{{ warning }}</li>
                        </ul>
                    </div>
                    <div class="format-row">
                        <select v-model="selectedFormatId" class="format-select">
                            <optgroup v-if="videoFormats.length" label="Video">
                                <option v-for="f in videoFormats" :key="f.id" :value="f.id">
                                    {{ f.label }} ({{ f.ext }}{{ f.size_bytes ? ', ' + formatBytes(f.size_bytes) : '' }})
                                </option>
                            </optgroup>
                            <optgroup v-if="audioFormats.length" label="Audio only">
                                <option v-for="f in audioFormats" :key="f.id" :value="f.id">
                                    {{ f.label }} ({{ f.ext }}{{ f.size_bytes ? ', ' + formatBytes(f.size_bytes) : '' }})
                                </option>
                            </optgroup>
                        </select>
                        <label class="checkbox-label">
                            <input type="checkbox" v-model="autoStart">
                            start right away
                        </label>
                    </div>
                    <div class="format-row">
                        <button class="btn" @click="queueDownload" :disabled="isSubmitting || !selectedFormatId">
                            <span v-if="isSubmitting">Adding...</span>
                            <span v-else-if="autoStart">Download</span>
                            <span v-else>Add to queue</span>
                        </button>
                        <button v-if="selectedFormat && selectedFormat.url" class="btn btn-secondary" @click="copyDirectLink">
                            Copy direct link
                        </button>
                        <button class="btn btn-secondary" @click="resetAnalyze">Clear</button>
                    </div>
                </div>
            </div>
        </div>

        <!-- Analyze failure -->
        <div v-if="analyzeState === 'error'" class="card">
            <div class="error-panel">
                <span>{{ analyzeError }}</span>
                <span>
                    <button class="btn btn-small" @click="analyze">Try again</button>
                    <button class="btn btn-small btn-secondary" @click="resetAnalyze">Dismiss</button>
                </span>
            </div>
        </div>

        <!-- Download list -->
        <div class="card">
            <div class="downloads-header">
                <h2>Downloads</h2>
                <button v-if="hasFinished" class="btn btn-small btn-secondary" @click="clearFinished">Clear finished</button>
            </div>

            <div v-if="sortedDownloads.length === 0" class="empty-state">
                Nothing here yet. Paste a link above to get started.
            </div>

            <div v-for="d in sortedDownloads" :key="d.id" class="download-item">
                <div class="download-head">
                    <div>
                        <p class="download-title">{{ d.title || d.url }}</p>
                        <div class="download-sub">
                            <span>{{ d.platform }}</span>
                            <span v-if="d.quality"> &middot; {{ d.quality }} {{ d.ext }}</span>
                            <span v-if="d.demo"> &middot; demo</span>
                            <span v-if="d.status_message"> &middot; {{ d.status_message }}</span>
                        </div>
                    </div>
                    <span class="badge" :class="'badge-' + d.status">{{ statusLabel(d.status) }}</span>
                </div>

                <div v-if="d.status === 'downloading'">
                    <div class="progress-bar">
                        <div class="progress-fill" :style="{ width: progressWidth(d) }"></div>
                    </div>
                    <div class="progress-stats">
                        <span>{{ d.progress.percentage.toFixed(1) }}%</span>
                        <span v-if="d.progress.speed">{{ d.progress.speed }}</span>
                        <span v-if="d.progress.eta">ETA {{ d.progress.eta }}</span>
                        <span v-if="d.progress.size">{{ d.progress.size }}</span>
                    </div>
                </div>

                <div v-if="d.status === 'failed' && d.error" class="download-sub" style="margin-top:6px;">
                    {{ d.error }}
                </div>

                <div class="download-actions">
                    <button v-if="d.status === 'ready'" class="btn btn-small" @click="startDownload(d.id)">Start</button>
                    <a v-if="d.status === 'completed' || d.status === 'already_exists'" class="btn btn-small" :href="fileUrl(d.id)">Save file</a>
                    <button v-if="d.status === 'downloading' || d.status === 'queued'" class="btn btn-small btn-secondary" @click="pauseDownload(d.id)">Pause</button>
                    <button v-if="d.status === 'paused'" class="btn btn-small" @click="resumeDownload(d.id)">Resume</button>
                    <button v-if="d.status === 'failed' || d.status === 'cancelled'" class="btn btn-small" @click="retryDownload(d.id)">Retry</button>
                    <button v-if="!isTerminal(d.status)" class="btn btn-small btn-secondary" @click="cancelDownload(d.id)">Cancel</button>
                    <button v-if="isTerminal(d.status)" class="btn btn-small btn-danger" @click="deleteDownload(d.id)">Delete</button>
                </div>
            </div>
        </div>
    </main>

    <footer class="app-footer">
        <div v-if="versionInfo">
            {{ versionInfo.build.app }} v{{ versionInfo.build.version }}
            &middot; sources: {{ versionInfo.backends.join(', ') }}
            &middot; {{ versionInfo.build.os }}/{{ versionInfo.build.arch }}
        </div>
    </footer>

    <!-- Settings modal -->
    <div v-if="showSettings" class="modal-overlay" @click.self="showSettings = false">
        <div class="modal">
            <h2>Settings</h2>
            <div class="form-field">
                <label>Download folder</label>
                <input type="text" v-model="settings.download_path">
            </div>
            <div class="form-field">
                <label>Concurrent downloads (1-10)</label>
                <input type="number" v-model.number="settings.max_concurrent_downloads" min="1" max="10">
            </div>
            <div class="form-field">
                <label>Port</label>
                <input type="number" v-model.number="settings.port" min="1" max="65535">
            </div>
            <div class="form-field">
                <label>HTTP timeout (seconds)</label>
                <input type="number" v-model.number="settings.http_timeout_seconds" min="1">
            </div>
            <div class="form-field">
                <label>Metadata cache TTL (minutes)</label>
                <input type="number" v-model.number="settings.cache_ttl_minutes" min="0">
            </div>
            <div class="form-field">
                <label>Delete finished files after (hours, 0 = keep)</label>
                <input type="number" v-model.number="settings.completed_file_expiry_hours" min="0">
            </div>
            <div class="form-field">
                <label>Piped instances (one per line)</label>
                <textarea v-model="pipedInstancesText" rows="3"></textarea>
            </div>
            <div class="form-field">
                <label class="checkbox-label">
                    <input type="checkbox" v-model="settings.demo_mode">
                    Demo mode (no real network lookups, simulated transfers)
                </label>
            </div>
            <div class="form-field">
                <label class="checkbox-label">
                    <input type="checkbox" v-model="settings.verbose_logging">
                    Verbose logging
                </label>
            </div>
            <div class="modal-actions">
                <button class="btn btn-secondary" @click="showSettings = false">Cancel</button>
                <button class="btn" @click="saveSettings" :disabled="isSavingSettings">
                    <span v-if="isSavingSettings">Saving...</span>
                    <span v-else>Save</span>
                </button>
            </div>
        </div>
    </div>

    <transition name="fade">
        <div v-if="statusMessage" class="toast" :class="statusMessage.type === 'error' ? 'toast-error' : 'toast-success'">
            {{ statusMessage.text }}
        </div>
    </transition>
</div>

<script>
    const { createApp } = Vue;

    createApp({
        data() {
            return {
                url: '',
                analyzeState: 'idle',
                analyzeError: '',
                mediaInfo: null,
                selectedFormatId: '',
                autoStart: true,
                downloads: [],
                platforms: [],
                versionInfo: null,
                demoMode: false,
                isSubmitting: false,
                isDarkMode: false,
                isConnected: false,
                statusMessage: null,
                showSettings: false,
                isSavingSettings: false,
                pipedInstancesText: '',
                settings: {
                    download_path: '',
                    max_concurrent_downloads: 3,
                    port: 8080,
                    default_format: 'best',
                    http_timeout_seconds: 30,
                    user_agent: '',
                    cache_ttl_minutes: 15,
                    demo_mode: false,
                    piped_instances: [],
                    verbose_logging: false,
                    completed_file_expiry_hours: 72
                }
            }
        },

        computed: {
            sortedDownloads() {
                return this.downloads.slice().sort((a, b) => {
                    const aDate = new Date(a.created_at);
                    const bDate = new Date(b.created_at);
                    const timeDiff = bDate - aDate;
                    // If dates are the same, use ID as secondary sort for stability
                    return timeDiff !== 0 ? timeDiff : a.id.localeCompare(b.id);
                });
            },

            videoFormats() {
                if (!this.mediaInfo) return [];
                return this.mediaInfo.formats.filter(f => f.kind === 'video');
            },

            audioFormats() {
                if (!this.mediaInfo) return [];
                return this.mediaInfo.formats.filter(f => f.kind === 'audio');
            },

            selectedFormat() {
                if (!this.mediaInfo) return null;
                return this.mediaInfo.formats.find(f => f.id === this.selectedFormatId) || null;
            },

            hasFinished() {
                return this.downloads.some(d => this.isTerminal(d.status));
            }
        },

        methods: {
            toggleDarkMode() {
                this.isDarkMode = !this.isDarkMode;
                if (this.isDarkMode) {
                    document.documentElement.classList.add('dark');
                    localStorage.setItem('darkMode', 'true');
                } else {
                    document.documentElement.classList.remove('dark');
                    localStorage.setItem('darkMode', 'false');
                }
            },

            checkDarkMode() {
                const savedMode = localStorage.getItem('darkMode');
                if (savedMode === 'true' || (savedMode === null && window.matchMedia('(prefers-color-scheme: dark)').matches)) {
                    this.isDarkMode = true;
                    document.documentElement.classList.add('dark');
                }
            },

            isTerminal(status) {
                return status === 'completed' || status === 'failed' || status === 'cancelled' || status === 'already_exists';
            },

            statusLabel(status) {
                const labels = {
                    queued: 'Queued',
                    analyzing: 'Analyzing',
                    ready: 'Ready',
                    downloading: 'Downloading',
                    paused: 'Paused',
                    completed: 'Completed',
                    already_exists: 'Already saved',
                    failed: 'Failed',
                    cancelled: 'Cancelled'
                };
                return labels[status] || status;
            },

            formatDuration(seconds) {
                const h = Math.floor(seconds / 3600);
                const m = Math.floor((seconds % 3600) / 60);
                const s = seconds % 60;
                if (h > 0) {
                    return h + ':' + String(m).padStart(2, '0') + ':' + String(s).padStart(2, '0');
                }
                return m + ':' + String(s).padStart(2, '0');
            },

            formatBytes(bytes) {
                if (!bytes) return '';
                const units = ['B', 'KB', 'MB', 'GB'];
                let value = bytes;
                let unit = 0;
                while (value >= 1024 && unit < units.length - 1) {
                    value /= 1024;
                    unit++;
                }
                return value.toFixed(unit === 0 ? 0 : 1) + ' ' + units[unit];
            },

            progressWidth(d) {
                const pct = d.progress && d.progress.percentage ? d.progress.percentage : 0;
                return Math.max(1, Math.min(100, pct)) + '%';
            },

            fileUrl(id) {
                return '/api/downloads/' + id + '/file';
            },

            flash(type, text) {
                this.statusMessage = { type: type, text: text };
                setTimeout(() => {
                    this.statusMessage = null;
                }, 5000);
            },

            useExample(platform) {
                this.url = platform.example_url;
                this.analyze();
            },

            resetAnalyze() {
                this.analyzeState = 'idle';
                this.analyzeError = '';
                this.mediaInfo = null;
                this.selectedFormatId = '';
            },

            async analyze() {
                if (!this.url.trim() || this.analyzeState === 'analyzing') {
                    return;
                }

                this.analyzeState = 'analyzing';
                this.analyzeError = '';
                this.mediaInfo = null;

                try {
                    const response = await fetch('/api/analyze', {
                        method: 'POST',
                        headers: {
                            'Content-Type': 'application/json'
                        },
                        body: JSON.stringify({ url: this.url })
                    });

                    if (response.ok) {
                        this.mediaInfo = await response.json();
                        const best = this.videoFormats[0] || this.mediaInfo.formats[0];
                        this.selectedFormatId = best ? best.id : '';
                        this.analyzeState = 'ready';
                    } else {
                        this.analyzeError = await response.text();
                        this.analyzeState = 'error';
                    }
                } catch (error) {
                    this.analyzeError = 'Network error: ' + error.message;
                    this.analyzeState = 'error';
                }
            },

            async queueDownload() {
                if (!this.mediaInfo || !this.selectedFormatId) {
                    return;
                }

                this.isSubmitting = true;

                try {
                    const response = await fetch('/api/downloads', {
                        method: 'POST',
                        headers: {
                            'Content-Type': 'application/json'
                        },
                        body: JSON.stringify({
                            url: this.mediaInfo.url,
                            format_id: this.selectedFormatId,
                            auto_start: this.autoStart
                        })
                    });

                    if (response.ok) {
                        this.flash('success', this.autoStart ? 'Download started!' : 'Added to the queue.');
                        this.url = '';
                        this.resetAnalyze();
                        await this.loadDownloads();
                    } else {
                        this.flash('error', await response.text());
                    }
                } catch (error) {
                    this.flash('error', 'Network error: ' + error.message);
                }

                this.isSubmitting = false;
            },

            async copyDirectLink() {
                if (!this.selectedFormat || !this.selectedFormat.url) {
                    return;
                }
                try {
                    await navigator.clipboard.writeText(this.selectedFormat.url);
                    this.flash('success', 'Direct link copied to clipboard.');
                } catch (error) {
                    this.flash('error', 'Could not copy: ' + error.message);
                }
            },

            async loadDownloads() {
                try {
                    const response = await fetch('/api/downloads');
                    if (response.ok) {
                        this.downloads = await response.json() || [];
                        this.isConnected = true;
                    } else {
                        this.isConnected = false;
                    }
                } catch (error) {
                    this.isConnected = false;
                }
            },

            async downloadAction(id, action, failText) {
                try {
                    const response = await fetch('/api/downloads/' + id + '/' + action, {
                        method: 'POST'
                    });
                    if (response.ok) {
                        await this.loadDownloads();
                    } else {
                        this.flash('error', failText + ': ' + await response.text());
                    }
                } catch (error) {
                    this.flash('error', 'Network error: ' + error.message);
                }
            },

            startDownload(id) {
                return this.downloadAction(id, 'start', 'Failed to start download');
            },

            pauseDownload(id) {
                return this.downloadAction(id, 'pause', 'Failed to pause download');
            },

            resumeDownload(id) {
                return this.downloadAction(id, 'resume', 'Failed to resume download');
            },

            retryDownload(id) {
                return this.downloadAction(id, 'retry', 'Failed to retry download');
            },

            cancelDownload(id) {
                return this.downloadAction(id, 'cancel', 'Failed to cancel download');
            },

            async deleteDownload(id) {
                if (!confirm('Remove this download? Its file is deleted too.')) {
                    return;
                }

                try {
                    const response = await fetch('/api/downloads/' + id, {
                        method: 'DELETE'
                    });
                    if (response.ok) {
                        await this.loadDownloads();
                    } else {
                        this.flash('error', 'Failed to delete download');
                    }
                } catch (error) {
                    this.flash('error', 'Network error: ' + error.message);
                }
            },

            async clearFinished() {
                if (!confirm('Clear all finished downloads from the list?')) {
                    return;
                }

                try {
                    const response = await fetch('/api/downloads/clear-finished', {
                        method: 'POST'
                    });
                    if (response.ok) {
                        await this.loadDownloads();
                    } else {
                        this.flash('error', 'Failed to clear finished downloads');
                    }
                } catch (error) {
                    this.flash('error', 'Network error: ' + error.message);
                }
            },

            async loadPlatforms() {
                try {
                    const response = await fetch('/api/platforms');
                    if (response.ok) {
                        this.platforms = await response.json();
                    }
                } catch (error) {
                    console.error('Failed to load platforms:', error);
                }
            },

            async loadVersion() {
                try {
                    const response = await fetch('/api/version');
                    if (response.ok) {
                        this.versionInfo = await response.json();
                        this.demoMode = this.versionInfo.demo_mode;
                    }
                } catch (error) {
                    console.error('Failed to load version info:', error);
                }
            },

            async openSettings() {
                try {
                    const response = await fetch('/api/config');
                    if (response.ok) {
                        this.settings = await response.json();
                        this.pipedInstancesText = (this.settings.piped_instances || []).join('\n');
                        this.showSettings = true;
                    }
                } catch (error) {
                    this.flash('error', 'Failed to load settings: ' + error.message);
                }
            },

            async saveSettings() {
                this.isSavingSettings = true;
                this.settings.piped_instances = this.pipedInstancesText
                    .split('\n')
                    .map(s => s.trim())
                    .filter(s => s.length > 0);

                try {
                    const response = await fetch('/api/config', {
                        method: 'POST',
                        headers: {
                            'Content-Type': 'application/json'
                        },
                        body: JSON.stringify(this.settings)
                    });

                    if (response.ok) {
                        this.settings = await response.json();
                        this.demoMode = this.settings.demo_mode;
                        this.showSettings = false;
                        this.flash('success', 'Settings saved.');
                    } else {
                        this.flash('error', await response.text());
                    }
                } catch (error) {
                    this.flash('error', 'Network error: ' + error.message);
                }

                this.isSavingSettings = false;
            }
        },

        mounted() {
            this.checkDarkMode();
            this.loadPlatforms();
            this.loadDownloads();
            this.loadVersion();

            // Poll for updates every 2 seconds
            setInterval(() => {
                this.loadDownloads();
            }, 2000);
        }
    }).mount('#app');
</script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}
