/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package spec holds the fixed identities and engine numbers shared by every
// tilawah binary.
package spec

const (
	// === IDENTITY & VERSIONING ===
	AppName      = "Tilawah"
	VersionMajor = 1
	VersionMinor = 2
	ServerName   = "Tilawah-Server"
	UserAgent    = "Tilawah/1.2"

	// === DATA PROVIDER ===
	APIBaseURL                = "https://api.alquran.cloud/v1"
	DefaultTextEdition        = "quran-uthmani"
	DefaultTranslationEdition = "en.asad"
	DefaultAudioEdition       = "ar.alafasy"
	ChapterCount              = 114
	VerseCount                = 6236

	// === ENGINE SPECS ===
	SampleRate      = 48000
	Channels        = 2
	BitDepth        = 16
	SpeakerBufferMs = 100
	ProgressTickMs  = 250

	// === LOCAL PATHS ===
	SocketFile = "/tmp/tilawah.sock"
	HTTPAddr   = "127.0.0.1:8088"
	ConfigDir  = "tilawah"
	CacheFile  = "cache.db"
)
