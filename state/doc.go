// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages the ledger accounts.
// It follows the flow as bellow:
//
//	          o
//	          |
//	 [ revertable state ]
//	          |
//	   [ stacked map ] -> [ journal ] -> [ Store.Apply ] -> [ local overlay ]
//	          |
//	   [ local overlay ]
//	          |
//	 [ origin (fork backend) ]
//
// Reads fall through the layers top down. Writes never reach the origin.
// A destructed account raises a storage barrier so that slots below it,
// local or remote, read as zero.
package state
